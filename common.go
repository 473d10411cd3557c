package backlines

import "github.com/pkg/errors"

var ErrUnsupportedEncoding = errors.New("encoding not implemented")
var ErrInvalidChunkSize = errors.New("chunk size must be positive")
var ErrShortRead = errors.New("short read, file modified while reading")
var ErrDecode = errors.New("line cannot be decoded")
var ErrEndOfTail = errors.New("end of tail")

type Line struct {
	// No is the number of current line counting backwards, the last line of the file is 1
	No int
	// Offset is the start offset of current line in the file, in number of bytes, starting from 0
	Offset int64
	// Raw holds the undecoded line content, excluding the line terminator
	Raw []byte
	// Text is Raw decoded with the reader's encoding
	Text string
}

func (l Line) Copy() Line {
	raw := make([]byte, len(l.Raw))
	copy(raw, l.Raw)
	l.Raw = raw
	return l
}
