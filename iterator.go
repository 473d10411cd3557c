package backlines

import (
	"os"

	"github.com/pkg/errors"
)

// LineIterator yields the lines of one file from the last to the first. It
// owns its own file handle, which is released once the iterator is exhausted,
// fails or is closed.
type LineIterator struct {
	id      int
	path    string
	fd      *os.File
	buf     *Buffer
	dec     *lineDecoder
	skip    int64
	done    bool
	err     error
	line    Line
	onClose func(id int)
}

// Scan advances to the previous line in the file. It returns false when there
// are no more lines or an error occurred.
func (it *LineIterator) Scan() bool {
	if it.done {
		return false
	}

	if err := it.buf.Fill(); err != nil {
		it.fail(errors.Wrapf(err, "reading %s", it.path))
		return false
	}

	if it.buf.HasReturnedEveryLine() {
		it.Close()
		return false
	}

	raw, offset := it.buf.ReturnLine()
	offset += it.skip
	text, err := it.dec.decode(raw)
	if err != nil {
		it.fail(errors.Wrapf(err, "%s: line at offset %d", it.path, offset))
		return false
	}

	it.line = Line{
		No:     it.line.No + 1,
		Offset: offset,
		Raw:    raw,
		Text:   text,
	}

	return true
}

func (it *LineIterator) fail(err error) {
	it.err = err
	it.Close()
}

func (it *LineIterator) Line() Line {
	return it.line
}

func (it *LineIterator) Text() string {
	return it.line.Text
}

func (it *LineIterator) Err() error {
	return it.err
}

// Done reports whether the iterator will yield no more lines.
func (it *LineIterator) Done() bool {
	return it.done
}

func (it *LineIterator) BytesRead() int64 {
	return it.buf.BytesRead()
}

// Close releases the file handle. Closing more than once is a no-op.
func (it *LineIterator) Close() error {
	it.done = true
	if it.fd == nil {
		return nil
	}

	err := it.fd.Close()
	it.fd = nil
	if it.onClose != nil {
		it.onClose(it.id)
	}

	return err
}
