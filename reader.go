package backlines

import (
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

const DefaultChunkSize = 64 * 1024

var lineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Reader reads a file backwards, last line first.
//
// Only one scan is in flight at a time: Iter keeps returning the same
// LineIterator until it is exhausted or closed, after which it starts over
// from the end of the file. A Reader is not safe for concurrent use.
type Reader struct {
	path      string
	encoding  string
	chunkSize int

	codec  codec
	active *LineIterator
	issued map[int]*LineIterator
	nextID int
}

type Option func(*Reader)

func WithEncoding(name string) Option {
	return func(r *Reader) {
		r.encoding = name
	}
}

func WithChunkSize(n int) Option {
	return func(r *Reader) {
		r.chunkSize = n
	}
}

// Open validates the options and opens the first scan of path.
func Open(path string, opts ...Option) (*Reader, error) {
	r := &Reader{
		path:      path,
		encoding:  DefaultEncoding,
		chunkSize: DefaultChunkSize,
		issued:    make(map[int]*LineIterator),
	}

	for i := range opts {
		opts[i](r)
	}

	c, err := lookupCodec(r.encoding)
	if err != nil {
		return nil, err
	}
	r.codec = c

	if r.chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "got %d", r.chunkSize)
	}

	if _, err := r.Iter(); err != nil {
		return nil, err
	}

	return r, nil
}

// With opens path, runs fn and closes the reader with every iterator it
// issued, whichever way fn returns.
func With(path string, fn func(*Reader) error, opts ...Option) (err error) {
	r, err := Open(path, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()

	return fn(r)
}

func (r *Reader) Path() string {
	return r.path
}

// Iter returns the in-flight iterator, or a new one scanning from the end of
// the file if there is none.
func (r *Reader) Iter() (*LineIterator, error) {
	if r.active != nil && !r.active.Done() {
		return r.active, nil
	}

	it, err := r.open()
	if err != nil {
		return nil, err
	}

	r.active = it
	return it, nil
}

func (r *Reader) open() (*LineIterator, error) {
	fd, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", r.path)
	}

	it, err := r.newIterator(fd)
	if err != nil {
		fd.Close()
		return nil, err
	}

	r.issued[it.id] = it
	return it, nil
}

func (r *Reader) newIterator(fd *os.File) (*LineIterator, error) {
	head := make([]byte, 4)
	n, err := io.ReadFull(fd, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(err, "reading head of %s", r.path)
	}

	enc, skip := r.codec.sniff(head[:n])
	nl, err := newNewlines(enc, r.codec.width)
	if err != nil {
		return nil, err
	}

	size, err := fd.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrapf(err, "seeking %s", r.path)
	}

	buf, err := NewBuffer(io.NewSectionReader(fd, skip, size-skip), r.chunkSize, nl)
	if err != nil {
		return nil, err
	}

	r.nextID++
	return &LineIterator{
		id:      r.nextID,
		path:    r.path,
		fd:      fd,
		buf:     buf,
		dec:     newLineDecoder(enc, r.codec.valid),
		skip:    skip,
		onClose: r.forget,
	}, nil
}

func (r *Reader) forget(id int) {
	delete(r.issued, id)
}

// ReadLine returns the next line of the in-flight scan followed by the platform
// line separator, or "" once the scan is exhausted.
func (r *Reader) ReadLine() (string, error) {
	it := r.active
	if it == nil {
		var err error
		if it, err = r.Iter(); err != nil {
			return "", err
		}
	}

	if !it.Scan() {
		return "", it.Err()
	}

	return it.Text() + lineSeparator, nil
}

// Close closes every iterator the reader issued that is still open. ReadLine
// returns "" afterwards while Iter starts a new scan.
func (r *Reader) Close() error {
	var first error
	for _, it := range r.issued {
		if err := it.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
