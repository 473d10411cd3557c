package backlines

import (
	"bytes"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const DefaultEncoding = "utf-8"

type bom struct {
	mark []byte
	enc  encoding.Encoding
}

// codec describes how lines of one supported encoding are split and decoded.
// When boms is set the byte order mark at the start of the file picks the
// encoding and is skipped; enc is used when no mark is present.
type codec struct {
	enc   encoding.Encoding
	width int
	boms  []bom
	valid func([]byte) bool
}

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	utf32LE = utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	utf32BE = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
)

var codecs = map[string]codec{
	"utf-8":     {enc: unicode.UTF8, width: 1},
	"utf-8-sig": {enc: unicode.UTF8, width: 1, boms: []bom{{[]byte{0xef, 0xbb, 0xbf}, unicode.UTF8}}},
	"ascii":     {enc: unicode.UTF8, width: 1, valid: isASCII},
	"utf-16": {enc: utf16LE, width: 2, boms: []bom{
		{[]byte{0xff, 0xfe}, utf16LE},
		{[]byte{0xfe, 0xff}, utf16BE},
	}},
	"utf-16-le": {enc: utf16LE, width: 2},
	"utf-16-be": {enc: utf16BE, width: 2},
	"utf-32": {enc: utf32LE, width: 4, boms: []bom{
		{[]byte{0xff, 0xfe, 0x00, 0x00}, utf32LE},
		{[]byte{0x00, 0x00, 0xfe, 0xff}, utf32BE},
	}},
	"utf-32-le":   {enc: utf32LE, width: 4},
	"utf-32-be":   {enc: utf32BE, width: 4},
	"latin-1":     {enc: charmap.ISO8859_1, width: 1},
	"iso-8859-2":  {enc: charmap.ISO8859_2, width: 1},
	"iso-8859-3":  {enc: charmap.ISO8859_3, width: 1},
	"iso-8859-4":  {enc: charmap.ISO8859_4, width: 1},
	"iso-8859-5":  {enc: charmap.ISO8859_5, width: 1},
	"iso-8859-6":  {enc: charmap.ISO8859_6, width: 1},
	"iso-8859-7":  {enc: charmap.ISO8859_7, width: 1},
	"iso-8859-8":  {enc: charmap.ISO8859_8, width: 1},
	"iso-8859-9":  {enc: charmap.ISO8859_9, width: 1},
	"iso-8859-10": {enc: charmap.ISO8859_10, width: 1},
	"iso-8859-13": {enc: charmap.ISO8859_13, width: 1},
	"iso-8859-14": {enc: charmap.ISO8859_14, width: 1},
	"iso-8859-15": {enc: charmap.ISO8859_15, width: 1},
	"iso-8859-16": {enc: charmap.ISO8859_16, width: 1},
	"cp437":       {enc: charmap.CodePage437, width: 1},
	"cp850":       {enc: charmap.CodePage850, width: 1},
	"cp866":       {enc: charmap.CodePage866, width: 1},
	"cp1250":      {enc: charmap.Windows1250, width: 1},
	"cp1251":      {enc: charmap.Windows1251, width: 1},
	"cp1252":      {enc: charmap.Windows1252, width: 1},
	"cp1253":      {enc: charmap.Windows1253, width: 1},
	"cp1254":      {enc: charmap.Windows1254, width: 1},
	"cp1255":      {enc: charmap.Windows1255, width: 1},
	"cp1256":      {enc: charmap.Windows1256, width: 1},
	"cp1257":      {enc: charmap.Windows1257, width: 1},
	"cp1258":      {enc: charmap.Windows1258, width: 1},
	"koi8-r":      {enc: charmap.KOI8R, width: 1},
	"koi8-u":      {enc: charmap.KOI8U, width: 1},
	"mac-roman":   {enc: charmap.Macintosh, width: 1},
}

var aliases = map[string]string{
	"utf8":         "utf-8",
	"utf-8-bom":    "utf-8-sig",
	"us-ascii":     "ascii",
	"latin1":       "latin-1",
	"iso-8859-1":   "latin-1",
	"iso8859-1":    "latin-1",
	"windows-1250": "cp1250",
	"windows-1251": "cp1251",
	"windows-1252": "cp1252",
	"windows-1253": "cp1253",
	"windows-1254": "cp1254",
	"windows-1255": "cp1255",
	"windows-1256": "cp1256",
	"windows-1257": "cp1257",
	"windows-1258": "cp1258",
	"utf16":        "utf-16",
	"utf-16le":     "utf-16-le",
	"utf-16be":     "utf-16-be",
	"utf32":        "utf-32",
	"utf-32le":     "utf-32-le",
	"utf-32be":     "utf-32-be",
	"macintosh":    "mac-roman",
}

func normalizeEncoding(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

func lookupCodec(name string) (codec, error) {
	c, ok := codecs[normalizeEncoding(name)]
	if !ok {
		return codec{}, errors.Wrapf(ErrUnsupportedEncoding, "%q", name)
	}
	return c, nil
}

// SupportedEncodings lists the canonical names accepted by WithEncoding.
func SupportedEncodings() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sniff picks the encoding from the first bytes of the file and returns how
// many of them belong to a byte order mark.
func (c codec) sniff(head []byte) (encoding.Encoding, int64) {
	for _, b := range c.boms {
		if bytes.HasPrefix(head, b.mark) {
			return b.enc, int64(len(b.mark))
		}
	}
	return c.enc, 0
}

// lineDecoder decodes raw lines strictly: text that does not encode back to
// the exact same bytes is rejected instead of being replaced.
type lineDecoder struct {
	dec   *encoding.Decoder
	enc   *encoding.Encoder
	valid func([]byte) bool
}

func newLineDecoder(enc encoding.Encoding, valid func([]byte) bool) *lineDecoder {
	return &lineDecoder{
		dec:   enc.NewDecoder(),
		enc:   enc.NewEncoder(),
		valid: valid,
	}
}

func (d *lineDecoder) decode(raw []byte) (string, error) {
	if d.valid != nil && !d.valid(raw) {
		return "", ErrDecode
	}

	text, err := d.dec.Bytes(raw)
	if err != nil {
		return "", errors.Wrap(ErrDecode, err.Error())
	}

	back, err := d.enc.Bytes(text)
	if err != nil || !bytes.Equal(back, raw) {
		return "", ErrDecode
	}

	return string(text), nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
