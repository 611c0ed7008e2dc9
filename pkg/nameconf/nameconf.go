// Package nameconf computes the canonical names of the files produced and
// consumed by the simulation and reconstruction chain.
package nameconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const (
	StandardSimPrefix    = "o2sim"
	GeomFileString       = "geometry"
	GRPFileString        = "grp"
	CutFileString        = "proc-cut"
	HitsString           = "Hits"
	DigitsString         = "digits"
	ClustersString       = "o2clus"
	NoiseString          = "noise"
	AlpideClusDictFile   = "dictionary"
	MatBudLUT            = "matbud"
	CTFDict              = "ctf_dictionary"
	DefaultDictionaryExt = ".bin"
	rootExt              = ".root"
	hdf5Ext              = ".h5"
	grpExt               = ".json"
	cutExt               = ".dat"
)

func PathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func PathIsDirectory(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// resolve implements the shared rule: an existing directory gets the
// standard name inside it, an existing file is returned as is, anything
// else is used as a prefix joined by sep.
func resolve(prefix, sep, name string, defaultPrefix string) string {
	if PathIsDirectory(prefix) {
		return filepath.Join(prefix, defaultPrefix+sep+name)
	}
	if PathExists(prefix) {
		return prefix
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + sep + name
}

// GeomFileName returns the file storing the geometry.
func GeomFileName(prefix string) string {
	return resolve(prefix, "_", GeomFileString+rootExt, StandardSimPrefix)
}

// CutProcFileName returns the file storing the simulation cuts/process
// summary.
func CutProcFileName(prefix string) string {
	return resolve(prefix, "_", CutFileString+cutExt, StandardSimPrefix)
}

// GRPFileName returns the file storing the global run parameters.
func GRPFileName(prefix string) string {
	return resolve(prefix, "_", GRPFileString+grpExt, StandardSimPrefix)
}

// AlpideClusterDictionaryFileName returns the topology dictionary file of
// det. Unlike the simulation files, the prefix is concatenated without a
// separator.
func AlpideClusterDictionaryFileName(det dataformats.DetID, prefix string, ext string) string {
	if ext == "" {
		ext = DefaultDictionaryExt
	}
	name := det.Name() + AlpideClusDictFile + ext
	if PathIsDirectory(prefix) {
		return filepath.Join(prefix, name)
	}
	if PathExists(prefix) {
		return prefix
	}
	return prefix + name
}

// MatLUTFileName returns the material budget lookup table file.
func MatLUTFileName(prefix string) string {
	name := MatBudLUT + rootExt
	if PathIsDirectory(prefix) {
		return filepath.Join(prefix, name)
	}
	if PathExists(prefix) {
		return prefix
	}
	return prefix + name
}

// CTFFileName returns the compressed timeframe file for a run, orbit and
// timeframe ID.
func CTFFileName(run, orbit, id uint32, prefix string) string {
	return prefix + "_" + fmt.Sprintf("run%08d_orbit%010d_tf%010d", run, orbit, id) + rootExt
}

func CTFDictFileName() string {
	return CTFDict + rootExt
}

// HitsFileName returns the simulated hits file of det, e.g. o2sim_HitsITS.h5.
func HitsFileName(det dataformats.DetID, prefix string) string {
	if prefix == "" {
		prefix = StandardSimPrefix
	}
	return prefix + "_" + HitsString + det.Name() + hdf5Ext
}

// DigitsFileName returns the digits file of det, e.g. itsdigits.h5.
func DigitsFileName(det dataformats.DetID, prefix string) string {
	return withDirectory(prefix, strings.ToLower(det.Name())+DigitsString+hdf5Ext)
}

// ClustersFileName returns the clusters file of det, e.g. o2clus_its.h5.
func ClustersFileName(det dataformats.DetID, prefix string) string {
	return withDirectory(prefix, ClustersString+"_"+strings.ToLower(det.Name())+hdf5Ext)
}

// NoiseFileName returns the file with the noisy pixels of det.
func NoiseFileName(det dataformats.DetID, prefix string) string {
	return withDirectory(prefix, det.Name()+"_"+NoiseString+hdf5Ext)
}

func withDirectory(prefix, name string) string {
	if PathIsDirectory(prefix) {
		return filepath.Join(prefix, name)
	}
	return prefix + name
}
