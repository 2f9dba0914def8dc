package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Logger struct {
	Verbose bool
	Debug   bool

	// Out receives info and debug lines, Err warnings and errors. Nil means
	// os.Stderr for both so command output on stdout stays clean.
	Out io.Writer
	Err io.Writer
}

func (l Logger) Infof(msg string, args ...any) {
	if l.Verbose || l.Debug {
		l.write(l.Out, color.GreenString("[info] "), msg, args)
	}
}

func (l Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		l.write(l.Out, color.CyanString("[debug] "), msg, args)
	}
}

func (l Logger) Warnf(msg string, args ...any) {
	l.write(l.Err, color.YellowString("[warn] "), msg, args)
}

func (l Logger) Errorf(msg string, args ...any) {
	l.write(l.Err, color.RedString("[error] "), msg, args)
}

func (l Logger) write(w io.Writer, prefix, msg string, args []any) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, prefix+msg+"\n", args...)
}
