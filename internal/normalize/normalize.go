// Package normalize derives the comparison keys used to pair local files
// with CMS records. Titles and file names go through the same steps; file
// names lose their extension first.
package normalize

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultDelimiter separates a subject from its trailing qualifier,
// as in "Asia Fintech Outlook - Full Report".
const DefaultDelimiter = " - "

// wordJoiners become spaces so slugged file names key like titles
var wordJoiners = strings.NewReplacer("-", " ", "_", " ", ".", " ")

// Options configures a Normalizer
type Options struct {
	Delimiter   string // Empty means DefaultDelimiter
	FoldAccents bool   // Keep base letters of accented runes instead of dropping them
}

// Normalizer turns titles and file names into TitleKeys
type Normalizer struct {
	delimiter   string
	foldAccents bool
}

// New creates a Normalizer
func New(opts Options) *Normalizer {
	delim := opts.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	return &Normalizer{
		delimiter:   delim,
		foldAccents: opts.FoldAccents,
	}
}

// Default returns a Normalizer with default options
func Default() *Normalizer {
	return New(Options{})
}

// Title keys a record title.
func (n *Normalizer) Title(raw string) string {
	return n.key(raw)
}

// File keys a file name. Any directory part and the final extension are
// dropped before the title steps run.
func (n *Normalizer) File(name string) string {
	return n.key(StripExtension(filepath.Base(name)))
}

func (n *Normalizer) key(s string) string {
	if idx := strings.Index(s, n.delimiter); idx >= 0 {
		s = s[:idx]
	}

	s = strings.ToLower(s)
	if n.foldAccents {
		s = foldAccents(s)
	}
	s = wordJoiners.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// StripExtension removes the last "." and everything after it
func StripExtension(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
