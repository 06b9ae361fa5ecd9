// Package encoding normalises uploaded spreadsheet exports to UTF-8.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 4096

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// NewUTF8Reader returns a reader that yields r decoded to UTF-8.
//
// A byte order mark wins. Otherwise content that is already valid UTF-8 is
// passed through, chardet picks between the Latin code pages, and anything
// it cannot place is read as Windows-1252, which is what spreadsheet tools
// on Windows emit by default.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peeking input: %w", err)
	}

	if bytes.HasPrefix(head, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	dec := decoderFor(head)
	if dec == nil {
		return br, nil
	}

	return transform.NewReader(br, dec), nil
}

// decoderFor returns nil when head needs no transcoding.
func decoderFor(head []byte) *encoding.Decoder {
	switch {
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	case validUTF8Prefix(head):
		return nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(head); err == nil {
		switch res.Charset {
		case "UTF-8":
			return nil
		case "ISO-8859-9":
			return charmap.ISO8859_9.NewDecoder()
		case "ISO-8859-15":
			return charmap.ISO8859_15.NewDecoder()
		}
	}

	return charmap.Windows1252.NewDecoder()
}

// validUTF8Prefix tolerates a multi-byte rune cut off by the sniff window.
func validUTF8Prefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}

	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) && !utf8.FullRune(b[len(b)-i:]) {
			return true
		}
	}

	return false
}
