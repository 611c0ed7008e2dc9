//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

var commands = []string{"digitizer", "clusterer", "dictbuilder", "noisecalib", "mappingupload"}

// Build compiles every command into ./bin
func Build() error {
	mg.Deps(BuildDigitizer, BuildClusterer, BuildDictBuilder, BuildNoiseCalib, BuildMappingUpload)
	fmt.Println("Compilation finished")
	return nil
}

func BuildDigitizer() error {
	return buildCommand("digitizer")
}

func BuildClusterer() error {
	return buildCommand("clusterer")
}

func BuildDictBuilder() error {
	return buildCommand("dictbuilder")
}

func BuildNoiseCalib() error {
	return buildCommand("noisecalib")
}

func BuildMappingUpload() error {
	return buildCommand("mappingupload")
}

// Test runs the unit tests. HDF5 needs cgo.
func Test() error {
	cmd := goCommand("test", "./...")
	return cmd.Run()
}

// Clean removes the executables
func Clean() error {
	for _, name := range commands {
		if err := os.RemoveAll("./bin/" + name); err != nil {
			return err
		}
	}
	return nil
}

func buildCommand(name string) error {
	fmt.Printf("Building %s executable...\n", name)
	cmd := goCommand("build", "-o", "./bin/"+name, "./"+name)
	return cmd.Run()
}

func goCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
