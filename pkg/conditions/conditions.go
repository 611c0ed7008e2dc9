// Package conditions reads and uploads run dependent calibration data in a
// SQL database. Every entry is valid for the runs MinRun <= run <= MaxRun.
package conditions

import (
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

var ErrInvalidRunRange = errors.New("invalid run range")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ConnectToDatabase opens the production MySQL database.
func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	return Open("mysql", dbURI)
}

// Open connects with any registered driver, "mysql" or "sqlite".
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s database: %w", driver, err)
	}
	return db, nil
}

type NoisyPixelEntry struct {
	Detector string `db:"Detector"`
	MinRun   int    `db:"MinRun"`
	MaxRun   int    `db:"MaxRun"`
	ChipID   int    `db:"ChipID"`
	Row      int    `db:"PixelRow"`
	Col      int    `db:"PixelCol"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS NoisyPixels (
	Detector VARCHAR(8) NOT NULL,
	MinRun INTEGER NOT NULL,
	MaxRun INTEGER NOT NULL,
	ChipID INTEGER NOT NULL,
	PixelRow INTEGER NOT NULL,
	PixelCol INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ChannelMapping (
	Detector VARCHAR(8) NOT NULL,
	MinRun INTEGER NOT NULL,
	MaxRun INTEGER NOT NULL,
	Link INTEGER NOT NULL,
	HWAddress INTEGER NOT NULL,
	ChipID INTEGER NOT NULL
)`,
}

type Conditions struct {
	db        *sqlx.DB
	logger    logging.Logger
	verbosity int
}

func New(db *sqlx.DB, logger logging.Logger, verbosity int) *Conditions {
	return &Conditions{db: db, logger: logger, verbosity: verbosity}
}

func (c *Conditions) CreateSchema() error {
	for _, table := range schema {
		if _, err := c.db.Exec(table); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

// NoisyPixels returns the masked pixels of det valid for run, sorted by
// chip, column and row.
func (c *Conditions) NoisyPixels(det dataformats.DetID, run int) ([]dataformats.NoisyPixel, error) {
	query := c.db.Rebind("SELECT Detector, MinRun, MaxRun, ChipID, PixelRow, PixelCol FROM NoisyPixels " +
		"WHERE Detector = ? AND MinRun <= ? AND MaxRun >= ? ORDER BY ChipID, PixelCol, PixelRow")

	if c.verbosity > 0 {
		message := fmt.Sprintf("Reading %v noisy pixels for run %d from database", det, run)
		c.logger.Info(message, "database")
	}
	if c.verbosity > 2 {
		c.logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}

	rows, err := c.db.Queryx(query, det.Name(), run, run)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	var pixels []dataformats.NoisyPixel
	for rows.Next() {
		entry := NoisyPixelEntry{}
		if err := rows.StructScan(&entry); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		pixels = append(pixels, dataformats.NoisyPixel{
			ChipID: uint16(entry.ChipID),
			Row:    uint16(entry.Row),
			Col:    uint16(entry.Col),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	return pixels, nil
}

// UploadNoisyPixels stores pixels for det in a single transaction.
func (c *Conditions) UploadNoisyPixels(det dataformats.DetID, minRun, maxRun int, pixels []dataformats.NoisyPixel) (err error) {
	if minRun > maxRun {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRunRange, minRun, maxRun)
	}
	tx, err := c.db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	insert := "INSERT INTO NoisyPixels (Detector, MinRun, MaxRun, ChipID, PixelRow, PixelCol) " +
		"VALUES (:Detector, :MinRun, :MaxRun, :ChipID, :PixelRow, :PixelCol)"
	for _, p := range pixels {
		entry := NoisyPixelEntry{
			Detector: det.Name(),
			MinRun:   minRun,
			MaxRun:   maxRun,
			ChipID:   int(p.ChipID),
			Row:      int(p.Row),
			Col:      int(p.Col),
		}
		if _, err = tx.NamedExec(insert, entry); err != nil {
			return fmt.Errorf("error inserting noisy pixel: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing noisy pixels: %w", err)
	}
	if c.verbosity > 0 {
		message := fmt.Sprintf("Uploaded %d %v noisy pixels for runs [%d, %d]", len(pixels), det, minRun, maxRun)
		c.logger.Info(message, "database")
	}
	return nil
}
