package diagnostic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Format is the encoding of a diagnostic data document.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Decode reads and resolves a diagnostic data document.
func Decode(r io.Reader, format Format) (*DiagnosticData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostic data: %w", err)
	}
	var d DiagnosticData
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &d)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &d)
	default:
		return nil, fmt.Errorf("unsupported diagnostic data format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode diagnostic data: %w", err)
	}
	if err := d.Resolve(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Encode writes the diagnostic data document.
func (d *DiagnosticData) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatCBOR:
		return cborEncMode.NewEncoder(w).Encode(d)
	}
	return fmt.Errorf("unsupported diagnostic data format %q", format)
}
