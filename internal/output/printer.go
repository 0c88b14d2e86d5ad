// Package output formats what the CLI shows to a person: status lines and tables.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Printer writes status lines, colored when the terminal supports it
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	quiet     bool
}

// NewPrinter creates a printer on stdout/stderr
func NewPrinter(quiet bool) *Printer {
	return &Printer{
		out:       os.Stdout,
		err:       os.Stderr,
		useColors: ColorsEnabled(os.Stdout),
		quiet:     quiet,
	}
}

// NewPrinterTo creates a printer on the given writers without colors
func NewPrinterTo(out, errOut io.Writer) *Printer {
	return &Printer{out: out, err: errOut}
}

// ColorsEnabled reports whether f is a terminal and NO_COLOR is unset
func ColorsEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether stdin is a terminal a person can answer from
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Out is the writer tables and plain output go to
func (p *Printer) Out() io.Writer {
	return p.out
}

func (p *Printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.out, color.FgCyan, "", format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.out, color.FgGreen, "✓ ", format, args...)
}

// Warning goes to stderr even in quiet mode
func (p *Printer) Warning(format string, args ...any) {
	p.line(p.err, color.FgYellow, "! ", format, args...)
}

// Error goes to stderr even in quiet mode
func (p *Printer) Error(format string, args ...any) {
	p.line(p.err, color.FgRed, "✗ ", format, args...)
}

func (p *Printer) line(w io.Writer, attr color.Attribute, prefix, format string, args ...any) {
	if p.useColors {
		_, _ = color.New(attr).Fprintf(w, prefix+format+"\n", args...)
		return
	}
	_, _ = fmt.Fprintf(w, prefix+format+"\n", args...)
}
