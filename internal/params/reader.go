package params

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const floatSize = 4

// ReadFloats decodes a headerless little-endian float32 stream.
// The stream length must be a multiple of four bytes.
func ReadFloats(r io.Reader) ([]float32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("params: read: %w", err)
	}
	return decode(raw, "", "values", -1)
}

// LoadFloats reads a parameter file and checks that it holds exactly want
// values. want <= 0 accepts any non-empty whole-float file.
func LoadFloats(path string, want int) ([]float32, error) {
	return loadNamed(path, "values", want)
}

func loadNamed(path, name string, want int) ([]float32, error) {
	//nolint:gosec // G304: parameter paths come from the operator
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("params: failed to read %s: %w", name, err)
	}
	return decode(raw, path, name, want)
}

func decode(raw []byte, path, name string, want int) ([]float32, error) {
	n := int64(len(raw))
	if n%floatSize != 0 {
		return nil, &LengthError{Path: path, Name: name, Bytes: n, Got: len(raw) / floatSize, Want: want}
	}
	count := len(raw) / floatSize
	if count == 0 || (want > 0 && count != want) {
		return nil, &LengthError{Path: path, Name: name, Bytes: n, Got: count, Want: want}
	}

	values := make([]float32, count)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*floatSize:]))
	}
	return values, nil
}

// WriteFloats encodes values as headerless little-endian float32.
func WriteFloats(w io.Writer, values []float32) error {
	buf := make([]byte, len(values)*floatSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*floatSize:], math.Float32bits(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("params: write: %w", err)
	}
	return nil
}

// SaveFloats writes values to path, replacing any existing file.
func SaveFloats(path string, values []float32) error {
	//nolint:gosec // G304: parameter paths come from the operator
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("params: failed to create %s: %w", path, err)
	}
	if err := WriteFloats(f, values); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
