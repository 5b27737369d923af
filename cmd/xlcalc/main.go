// Package main provides xlcalc, an offline client that evaluates workbooks
// with the same service the HTTP server runs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/xlcalc/internal/core"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// printError writes err for the terminal. Service errors carry their support
// code and suggested action; flag and argument errors print unchanged.
func printError(w io.Writer, err error) {
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, "Error:", core.FormatUserError(err))
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
