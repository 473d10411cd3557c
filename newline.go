package backlines

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// Newlines is the ordered set of line terminators for one encoding, longest
// first, together with the width of a code unit in that encoding. Terminators
// only match on offsets aligned to the unit width.
type Newlines struct {
	seqs  [][]byte
	width int
}

// ByteNewlines matches \r\n, \n and \r in ASCII compatible encodings.
var ByteNewlines = Newlines{
	seqs:  [][]byte{[]byte("\r\n"), []byte("\n"), []byte("\r")},
	width: 1,
}

func newNewlines(enc encoding.Encoding, width int) (Newlines, error) {
	nl := Newlines{width: width}
	for _, s := range []string{"\r\n", "\n", "\r"} {
		b, err := enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return Newlines{}, errors.Wrapf(err, "encoding newline %q", s)
		}
		nl.seqs = append(nl.seqs, b)
	}

	return nl, nil
}

// Width is the size of a code unit in bytes.
func (nl Newlines) Width() int {
	return nl.width
}

// Furthest returns the start index and length of the right most terminator in b,
// or -1 if there is none.
func (nl Newlines) Furthest(b []byte) (int, int) {
	w := nl.width
	for i := (len(b)/w)*w - w; i >= 0; i -= w {
		for _, seq := range nl.seqs {
			if bytes.HasPrefix(b[i:], seq) {
				return i, len(seq)
			}
		}
	}

	return -1, 0
}

// TrimTrailing removes one terminator from the end of b.
func (nl Newlines) TrimTrailing(b []byte) []byte {
	for _, seq := range nl.seqs {
		cut := len(b) - len(seq)
		if cut >= 0 && cut%nl.width == 0 && bytes.HasSuffix(b, seq) {
			return b[:cut]
		}
	}

	return b
}

// IsPartial reports whether unit is a non-initial unit of a multi-unit
// terminator, i.e. reading from here could split a terminator in two.
func (nl Newlines) IsPartial(unit []byte) bool {
	w := nl.width
	for _, seq := range nl.seqs {
		for k := w; k+w <= len(seq); k += w {
			if bytes.Equal(seq[k:k+w], unit) {
				return true
			}
		}
	}

	return false
}
