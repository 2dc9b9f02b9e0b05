package importer

// reader.go cleans the byte stream of an uploaded spreadsheet before the
// CSV reader sees it:
//
//   - bomSkippingReader drops the UTF-8 BOM spreadsheet programs prepend
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - sizeLimitReader fails once the file grows past the configured limit
//
// newCleanReader applies all three in the right order.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned when an import exceeds the configured size.
var ErrFileTooLarge = errors.New("import file too large")

// newCleanReader strips the BOM, sanitizes UTF-8 and enforces maxBytes
// (0 disables the limit).
func newCleanReader(r io.Reader, maxBytes int64) io.Reader {
	return limitReader(&utf8Sanitizer{reader: &bomSkippingReader{reader: r}}, maxBytes)
}

// limitReader enforces maxBytes on r; 0 disables the limit.
func limitReader(r io.Reader, maxBytes int64) io.Reader {
	if maxBytes > 0 {
		return &sizeLimitReader{reader: r, max: maxBytes}
	}
	return r
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' as they stream past.
// A multi-byte rune split across two reads is held in raw until it
// completes, so callers may read with buffers of any size.
type utf8Sanitizer struct {
	reader io.Reader
	raw    []byte // undecoded tail of the last read
	out    []byte // sanitized bytes not yet returned
	err    error
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	var chunk [4096]byte
	n, err := s.reader.Read(chunk[:])
	s.raw = append(s.raw, chunk[:n]...)
	s.err = err
	atEOF := err != nil

	s.out = s.out[:0]
	i := 0
	for i < len(s.raw) {
		b := s.raw[i]
		if b < utf8.RuneSelf {
			s.out = append(s.out, b)
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(s.raw[i:]) {
			break
		}
		r, size := utf8.DecodeRune(s.raw[i:])
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, '?')
		} else {
			s.out = append(s.out, s.raw[i:i+size]...)
		}
		i += size
	}
	s.raw = append(s.raw[:0], s.raw[i:]...)
}

// bomSkippingReader drops a leading UTF-8 BOM (EF BB BF).
type bomSkippingReader struct {
	reader  io.Reader
	checked bool
	head    []byte
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if !(n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF) {
			r.head = append(r.head, buf[:n]...)
		}
		if n < 3 && len(r.head) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// sizeLimitReader counts bytes and fails with ErrFileTooLarge past max.
type sizeLimitReader struct {
	reader io.Reader
	max    int64
	read   int64
}

func (r *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	if r.read > r.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.max)
	}
	return n, err
}
