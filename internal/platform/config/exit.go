package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	exitProcess           = os.Exit
	exitOutput  io.Writer = os.Stderr
)

// Exitf reports a fatal startup error prefixed with the program name and
// exits with status 1.
func Exitf(format string, args ...any) {
	program := filepath.Base(os.Args[0])
	fmt.Fprintf(exitOutput, "%s: %s\n", program, fmt.Sprintf(format, args...))
	exitProcess(1)
}
