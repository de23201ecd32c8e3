package source

// encoding.go normalizes text uploads to UTF-8.
//
// Exports from Japanese CAD tools are frequently Shift-JIS. Text formats try
// UTF-8 first (after dropping any byte order mark) and fall back to Shift-JIS
// when the bytes are not valid UTF-8.

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 BOM.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte // bytes read while checking that were not a BOM
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n < 3 || !bytes.Equal(buf[:], utf8BOM) {
			r.pending = append(r.pending, buf[:n]...)
		}
		if err == io.EOF && len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// Encoding names reported by DecodeText.
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// DecodeText returns data as a UTF-8 string and the encoding it was read as.
// Bytes that are invalid in both encodings become U+FFFD.
func DecodeText(data []byte) (string, string, error) {
	stripped, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(data)))
	if err != nil {
		return "", "", err
	}
	if utf8.Valid(stripped) {
		return string(stripped), EncodingUTF8, nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(stripped), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return "", "", err
	}
	return string(decoded), EncodingShiftJIS, nil
}
