package dataformats

// Digit is a fired pixel. Charge is in electrons.
type Digit struct {
	ChipIndex uint16
	Row       uint16
	Col       uint16
	Charge    int32
}

// ROFRecord describes the entries of one readout frame.
type ROFRecord struct {
	BCData     InteractionRecord
	ROFrame    int64
	FirstEntry int32
	NEntries   int32
}

// EntriesRange returns the [first, last) indices of the frame entries.
func (r ROFRecord) EntriesRange() (int, int) {
	return int(r.FirstEntry), int(r.FirstEntry + r.NEntries)
}

// MC2ROFRecord relates an MC event to the readout frames it contributed to.
type MC2ROFRecord struct {
	EventRecordID int32
	ROFRecordID   int32
	MinROF        uint32
	MaxROF        uint32
}
