package backlines

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

// sizedBuffer returns a buffer over a zero filled source of the given size,
// ready for its state to be set by hand.
func sizedBuffer(g *WithT, size int) *Buffer {
	b, err := NewBuffer(bytes.NewReader(make([]byte, size)), 8192, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	return b
}

func TestNewBufferRejectsChunkSize(t *testing.T) {
	g := NewGomegaWithT(t)

	_, err := NewBuffer(strings.NewReader("abc"), 0, ByteNewlines)
	g.Expect(err).Should(MatchError(ErrInvalidChunkSize))
}

func TestWhatToReadNext(t *testing.T) {
	g := NewGomegaWithT(t)

	pos, amount, err := whatToReadNext(strings.NewReader(""), 0, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect([]int64{pos, amount}).Should(Equal([]int64{0, 0}))

	pos, amount, err = whatToReadNext(strings.NewReader("abcdefg"), 7, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect([]int64{pos, amount}).Should(Equal([]int64{4, 3}))

	for _, nl := range newlineVariants {
		n := int64(len(nl))
		pos, amount, err = whatToReadNext(strings.NewReader(nl), n, n+1, ByteNewlines)
		g.Expect(err).ShouldNot(HaveOccurred())
		g.Expect([]int64{pos, amount}).Should(Equal([]int64{0, n}), "%q", nl)
	}

	// the chunk would start on the \n, so it grows by one byte
	pos, amount, err = whatToReadNext(strings.NewReader("abcd\nfg"), 7, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect([]int64{pos, amount}).Should(Equal([]int64{3, 4}))
}

func TestWhatToReadNextKeepsCRLFTogether(t *testing.T) {
	g := NewGomegaWithT(t)

	pos, amount, err := whatToReadNext(strings.NewReader("ab\r\ncd"), 6, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect([]int64{pos, amount}).Should(Equal([]int64{2, 4}))
}

func TestNextChunk(t *testing.T) {
	g := NewGomegaWithT(t)

	content, pos, err := nextChunk(strings.NewReader(""), 0, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(content).Should(BeEmpty())
	g.Expect(pos).Should(BeEquivalentTo(0))

	content, pos, err = nextChunk(strings.NewReader("abcdefg"), 7, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(content).Should(BeEquivalentTo("efg"))
	g.Expect(pos).Should(BeEquivalentTo(4))

	content, pos, err = nextChunk(strings.NewReader("abcd\nfg"), 7, 3, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(content).Should(BeEquivalentTo("d\nfg"))
	g.Expect(pos).Should(BeEquivalentTo(3))
}

func TestNextChunkShortRead(t *testing.T) {
	g := NewGomegaWithT(t)

	// the source claims to be longer than it is
	_, _, err := nextChunk(strings.NewReader("abc"), 10, 4, ByteNewlines)
	g.Expect(errors.Is(err, ErrShortRead)).Should(BeTrue())
}

func TestFillAfterTruncate(t *testing.T) {
	g := NewGomegaWithT(t)

	path := filepath.Join(t.TempDir(), "truncated")
	g.Expect(os.WriteFile(path, []byte("line 0!\nline 1!\n"), 0o644)).Should(Succeed())

	fd, err := os.Open(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	defer fd.Close()

	b, err := NewBuffer(fd, 4, ByteNewlines)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(os.Truncate(path, 2)).Should(Succeed())

	err = b.Fill()
	g.Expect(errors.Is(err, ErrShortRead)).Should(BeTrue())
}

func TestAddToBuffer(t *testing.T) {
	g := NewGomegaWithT(t)
	b := sizedBuffer(g, 1024)

	b.AddToBuffer([]byte("aaa"), 1021)
	g.Expect(b.pending).Should(BeEquivalentTo("aaa"))
	g.Expect(b.readPosition).Should(BeEquivalentTo(1021))

	b.AddToBuffer([]byte("bbb"), 1018)
	g.Expect(b.pending).Should(BeEquivalentTo("bbbaaa"))
	g.Expect(b.readPosition).Should(BeEquivalentTo(1018))

	g.Expect(func() { b.AddToBuffer([]byte("c"), 1019) }).Should(Panic())
}

func TestYieldable(t *testing.T) {
	g := NewGomegaWithT(t)

	g.Expect(sizedBuffer(g, 0).Yieldable()).Should(BeFalse())

	for _, nl := range newlineVariants {
		b := sizedBuffer(g, 1024)
		b.AddToBuffer([]byte(nl), int64(1024-len(nl)))
		g.Expect(b.Yieldable()).Should(BeFalse(), "single %q with more to read", nl)

		b = sizedBuffer(g, 1024)
		b.AddToBuffer([]byte(nl+nl), int64(1024-2*len(nl)))
		g.Expect(b.Yieldable()).Should(BeTrue(), "two %q", nl)
	}

	b := sizedBuffer(g, 1024)
	b.AddToBuffer([]byte{}, 0)
	g.Expect(b.Yieldable()).Should(BeTrue(), "fully read with an empty first line left")

	b = sizedBuffer(g, 1024)
	b.readPosition = 0
	g.Expect(b.Yieldable()).Should(BeFalse(), "fully read and returned")
}

func TestReturnLine(t *testing.T) {
	g := NewGomegaWithT(t)

	for _, nl := range newlineVariants {
		b := sizedBuffer(g, 1024)
		b.AddToBuffer([]byte(nl+nl), int64(1024-2*len(nl)))
		line, offset := b.ReturnLine()
		g.Expect(line).Should(BeEmpty())
		g.Expect(offset).Should(BeEquivalentTo(1024 - len(nl)))

		b = sizedBuffer(g, 1024)
		b.AddToBuffer([]byte(nl+"Something"+nl), int64(1024-2*len(nl)-9))
		line, _ = b.ReturnLine()
		g.Expect(line).Should(BeEquivalentTo("Something"))
		g.Expect(b.pending).Should(BeEquivalentTo(nl))
	}

	b := sizedBuffer(g, 1024)
	b.AddToBuffer([]byte("LastLineYay"), 0)
	line, offset := b.ReturnLine()
	g.Expect(line).Should(BeEquivalentTo("LastLineYay"))
	g.Expect(offset).Should(BeEquivalentTo(0))
	g.Expect(b.HasReturnedEveryLine()).Should(BeTrue())
}

func TestReturnLineContractViolation(t *testing.T) {
	g := NewGomegaWithT(t)
	b := sizedBuffer(g, 0)

	g.Expect(func() { b.ReturnLine() }).Should(Panic())
}

func TestHasReturnedEveryLine(t *testing.T) {
	g := NewGomegaWithT(t)

	g.Expect(sizedBuffer(g, 0).HasReturnedEveryLine()).Should(BeTrue())

	b := sizedBuffer(g, 1024)
	b.AddToBuffer([]byte("a"), 1)
	g.Expect(b.HasReturnedEveryLine()).Should(BeFalse())

	b = sizedBuffer(g, 1024)
	b.AddToBuffer([]byte("abc"), 0)
	g.Expect(b.HasReturnedEveryLine()).Should(BeFalse())

	b.ReturnLine()
	g.Expect(b.HasReturnedEveryLine()).Should(BeTrue())
}

func TestBufferDrainsFileBackwards(t *testing.T) {
	g := NewGomegaWithT(t)

	src := "abcd\nfg\r\n\r\nhi\r"
	for chunk := 1; chunk <= len(src)+1; chunk++ {
		b, err := NewBuffer(strings.NewReader(src), chunk, ByteNewlines)
		g.Expect(err).ShouldNot(HaveOccurred())

		var lines []string
		for {
			g.Expect(b.Fill()).Should(Succeed())
			if b.HasReturnedEveryLine() {
				break
			}
			line, _ := b.ReturnLine()
			lines = append(lines, string(line))
		}

		g.Expect(lines).Should(Equal([]string{"hi", "", "fg", "abcd"}), "chunk size %d", chunk)
		g.Expect(b.BytesRead()).Should(BeEquivalentTo(len(src)))
	}
}
