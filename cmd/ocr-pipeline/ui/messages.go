package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

func message(w io.Writer, mark string, attr color.Attribute, format string, args []interface{}) {
	fmt.Fprintf(w, "%s %s\n", color.New(attr).Sprint(mark), fmt.Sprintf(format, args...))
}

// Error reports a failure on Err.
func Error(format string, args ...interface{}) { message(Err, "✗", color.FgRed, format, args) }

// Warning reports a partial failure on Err.
func Warning(format string, args ...interface{}) { message(Err, "⚠", color.FgYellow, format, args) }

func Success(format string, args ...interface{}) { message(Out, "✓", color.FgGreen, format, args) }

// Newline prints a newline.
func Newline() {
	fmt.Fprintln(Out)
}
