// Package jsoncodec is the JSON codec shared by policy documents, the io
// transport and CLI output. It uses sonic in std-compatible mode, which
// sorts map keys so encoded contexts are stable.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var (
	api = sonic.ConfigStd

	// strict matches api but rejects object keys with no destination field.
	strict = sonic.Config{
		EscapeHTML:            true,
		SortMapKeys:           true,
		CompactMarshaler:      true,
		CopyString:            true,
		ValidateString:        true,
		DisallowUnknownFields: true,
	}.Froze()
)

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent encodes v with two-space indentation.
func MarshalIndent(v any) ([]byte, error) {
	return api.MarshalIndent(v, "", "  ")
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// UnmarshalStrict is Unmarshal that fails on unknown object keys.
func UnmarshalStrict(data []byte, v any) error {
	return strict.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return api.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return api.NewDecoder(r).Decode(v)
}
