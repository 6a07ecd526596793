package parser

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source files arrive in whatever encoding the author's editor used.
// Everything downstream works on UTF-8, so reads go through a small
// detector: BOM first, then UTF-8 validation, then a UTF-16 null-byte
// heuristic, with Windows-1252 as the single-byte fallback.

type EncodingResult struct {
	Name   string
	HasBOM bool
}

func DetectEncoding(data []byte) EncodingResult {
	if len(data) == 0 {
		return EncodingResult{Name: "utf-8"}
	}

	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return EncodingResult{Name: "utf-8", HasBOM: true}
	}
	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return EncodingResult{Name: "utf-16le", HasBOM: true}
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return EncodingResult{Name: "utf-16be", HasBOM: true}
		}
	}

	// Null bytes are valid UTF-8, so the UTF-16 null heuristic has to
	// run before the UTF-8 check.
	if enc := detectUTF16ByNulls(data); enc != "" {
		return EncodingResult{Name: enc}
	}

	if utf8.Valid(data) {
		return EncodingResult{Name: "utf-8"}
	}

	return EncodingResult{Name: "windows-1252"}
}

// detectUTF16ByNulls spots BOM-less UTF-16: mostly-ASCII source text in
// UTF-16 has a null in every other byte position.
func detectUTF16ByNulls(data []byte) string {
	if len(data) < 2 || len(data)%2 != 0 {
		return ""
	}
	oddNulls, evenNulls := 0, 0
	for i := 0; i < len(data); i += 2 {
		if data[i] == 0 {
			evenNulls++
		}
		if data[i+1] == 0 {
			oddNulls++
		}
	}
	half := len(data) / 2
	if oddNulls*4 > half*3 {
		return "utf-16le"
	}
	if evenNulls*4 > half*3 {
		return "utf-16be"
	}
	return ""
}

func DecodeToUTF8(data []byte, detected EncodingResult) string {
	data = stripBOM(data, detected)

	switch detected.Name {
	case "utf-16le":
		return decodeWithFallback(data, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	case "utf-16be":
		return decodeWithFallback(data, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
	case "windows-1252":
		return decodeWithFallback(data, charmap.Windows1252.NewDecoder())
	default:
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
}

func stripBOM(data []byte, detected EncodingResult) []byte {
	if !detected.HasBOM {
		return data
	}
	switch detected.Name {
	case "utf-8":
		if len(data) >= 3 {
			return data[3:]
		}
	case "utf-16le", "utf-16be":
		if len(data) >= 2 {
			return data[2:]
		}
	}
	return data
}

func decodeWithFallback(data []byte, decoder *encoding.Decoder) string {
	if len(data) == 0 {
		return ""
	}
	result, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(bytes.ToValidUTF8(result, []byte("�")))
}

// ReadSourceFile loads path and normalizes its content to UTF-8.
func ReadSourceFile(path string) (string, EncodingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", EncodingResult{}, err
	}
	detected := DetectEncoding(data)
	return DecodeToUTF8(data, detected), detected, nil
}
