package backlines

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Buffer pulls chunks from the end of a seekable source towards its start and
// hands out complete lines from the tail of what it holds.
//
// Bytes in [readPosition, readPosition+len(pending)) are the part of the source
// not yet returned as lines. held is false once the last line went out.
type Buffer struct {
	src       io.ReadSeeker
	nl        Newlines
	chunkSize int64
	fileSize  int64

	readPosition int64
	pending      []byte
	held         bool

	bytesRead int64
}

func NewBuffer(src io.ReadSeeker, chunkSize int, nl Newlines) (*Buffer, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "seeking to end")
	}

	return &Buffer{
		src:          src,
		nl:           nl,
		chunkSize:    int64(chunkSize),
		fileSize:     size,
		readPosition: size,
	}, nil
}

// AddToBuffer prepends content, which was read from pos.
func (b *Buffer) AddToBuffer(content []byte, pos int64) {
	if pos > b.readPosition {
		panic(fmt.Sprintf("backlines: read position moved forward from %d to %d", b.readPosition, pos))
	}

	joined := make([]byte, len(content)+len(b.pending))
	copy(joined, content)
	copy(joined[len(content):], b.pending)
	b.pending = joined
	b.held = true
	b.readPosition = pos
}

// Yieldable reports whether a complete line can be returned without more I/O.
func (b *Buffer) Yieldable() bool {
	if !b.held {
		return false
	}

	if i, _ := b.nl.Furthest(b.nl.TrimTrailing(b.pending)); i >= 0 {
		return true
	}

	// the whole source is in memory, what's left is the first line
	return b.readPosition == 0
}

// ReturnLine removes the last line from the buffer and returns it without its
// terminator, along with its offset in the source. It must only be called when
// Yieldable is true.
func (b *Buffer) ReturnLine() ([]byte, int64) {
	if !b.Yieldable() {
		panic("backlines: ReturnLine called on a buffer without a complete line")
	}

	t := b.nl.TrimTrailing(b.pending)
	if i, n := b.nl.Furthest(t); i >= 0 {
		b.pending = t[:i+n]
		return t[i+n:], b.readPosition + int64(i+n)
	}

	b.pending = nil
	b.held = false
	return t, b.readPosition
}

func (b *Buffer) HasReturnedEveryLine() bool {
	return b.readPosition == 0 && !b.held
}

// Fill reads chunks until a line is ready or the source is exhausted.
func (b *Buffer) Fill() error {
	for !b.Yieldable() && !b.HasReturnedEveryLine() {
		content, pos, err := nextChunk(b.src, b.readPosition, b.chunkSize, b.nl)
		if err != nil {
			return err
		}

		b.bytesRead += int64(len(content))
		b.AddToBuffer(content, pos)
	}

	return nil
}

// BytesRead is the number of bytes pulled from the source so far.
func (b *Buffer) BytesRead() int64 {
	return b.bytesRead
}

// whatToReadNext works out where the chunk before prev starts and how long it
// is. The start is pushed back while it would land inside a terminator.
func whatToReadNext(src io.ReadSeeker, prev, chunkSize int64, nl Newlines) (int64, int64, error) {
	if prev == 0 {
		return 0, 0, nil
	}

	w := int64(nl.width)
	pos := prev - chunkSize
	if pos < 0 {
		pos = 0
	}
	pos -= pos % w

	unit := make([]byte, w)
	for pos > 0 && pos+w <= prev {
		if _, err := src.Seek(pos, io.SeekStart); err != nil {
			return 0, 0, errors.Wrapf(err, "seeking to %d", pos)
		}

		if _, err := io.ReadFull(src, unit); err != nil {
			return 0, 0, errors.Wrapf(ErrShortRead, "peeking at %d: %v", pos, err)
		}

		if !nl.IsPartial(unit) {
			break
		}

		pos -= w
	}

	return pos, prev - pos, nil
}

func nextChunk(src io.ReadSeeker, prev, chunkSize int64, nl Newlines) ([]byte, int64, error) {
	pos, amount, err := whatToReadNext(src, prev, chunkSize, nl)
	if err != nil {
		return nil, 0, err
	}

	if _, err := src.Seek(pos, io.SeekStart); err != nil {
		return nil, 0, errors.Wrapf(err, "seeking to %d", pos)
	}

	content := make([]byte, amount)
	n, err := io.ReadFull(src, content)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, 0, errors.Wrapf(ErrShortRead, "got %d of %d bytes at %d", n, amount, pos)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %d bytes at %d", amount, pos)
	}

	return content, pos, nil
}
