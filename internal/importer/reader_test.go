package importer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "사번,성명"...), "사번,성명"},
		{"file without BOM", []byte("사번,성명"), "사번,성명"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"short file", []byte("ab"), "ab"},
		{"partial BOM at start", []byte{0xEF, 0xBB, 'a', 'b'}, string([]byte{0xEF, 0xBB, 'a', 'b'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(&bomSkippingReader{reader: bytes.NewReader(tt.input)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("S/N,SN1"), "S/N,SN1"},
		{"valid multibyte", []byte("노트북,모니터"), "노트북,모니터"},
		{"invalid byte replaced", []byte{'S', 'N', 0x80, '1'}, "SN?1"},
		{"truncated rune at EOF", append([]byte("노"), 0xEB, 0x85), "노??"},
		{"empty input", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &utf8Sanitizer{reader: bytes.NewReader(tt.input)}
			result, err := io.ReadAll(s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

// A rune split across reads must come out whole.
func TestUTF8Sanitizer_SplitRune(t *testing.T) {
	in := "종류,노트북\n모니터"
	s := &utf8Sanitizer{reader: iotest.OneByteReader(strings.NewReader(in))}

	var out []byte
	buf := make([]byte, 2)
	for {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if string(out) != in {
		t.Errorf("got %q, want %q", out, in)
	}
}

func TestSizeLimitReader(t *testing.T) {
	input := strings.Repeat("x", 100)

	if _, err := io.ReadAll(&sizeLimitReader{reader: strings.NewReader(input), max: 100}); err != nil {
		t.Errorf("at the limit: %v", err)
	}
	_, err := io.ReadAll(&sizeLimitReader{reader: strings.NewReader(input), max: 99})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("over the limit err = %v, want ErrFileTooLarge", err)
	}
}

func TestNewCleanReader(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, 'h', 'e', 0x80, 'l', 'o')

	result, err := io.ReadAll(newCleanReader(bytes.NewReader(input), 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "he?lo" {
		t.Errorf("got %q, want %q", string(result), "he?lo")
	}
}
