package shmvars

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"time"
)

// Serialization format selectors recognized by the sync protocol.
//
// FormatJSON is safe to decode from untrusted peers but limited to the JSON
// value domain (numbers decode as float64, no custom composite types).
// FormatBinary uses the Go-native gob codec: it carries arbitrary registered
// value graphs but must only be used when both ends of a segment are
// mutually trusted, since native object-graph decoders are an attack surface
// when fed hostile bytes.
const (
	FormatJSON   = "text-json"
	FormatBinary = "binary-native"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

type jsonMarshaler struct{}

// NewMarshaler returns the default marshaller which uses golang's json package.
func NewMarshaler() Marshaler {
	return jsonMarshaler{}
}

func (m jsonMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (m jsonMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type gobMarshaler struct{}

func (m gobMarshaler) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m gobMarshaler) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

var marshalers = map[string]Marshaler{
	FormatJSON:   jsonMarshaler{},
	FormatBinary: gobMarshaler{},
}

// MarshalerFor returns the marshaler for a format selector, or false when
// the format is not recognized.
func MarshalerFor(format string) (Marshaler, bool) {
	m, ok := marshalers[format]
	return m, ok
}

// Formats lists the recognized format selectors.
func Formats() []string {
	return []string{FormatJSON, FormatBinary}
}

// RegisterType makes a concrete type transmissible inside `any` values under
// FormatBinary. Callers storing custom types must register them on both ends
// of the segment before syncing.
func RegisterType(v any) {
	gob.Register(v)
}

func init() {
	// Common concrete types carried as `any` in the variable table.
	for _, v := range []any{
		int(0), int64(0), uint64(0), float64(0), "", false,
		[]any{}, map[string]any{}, []string{}, time.Time{},
	} {
		gob.Register(v)
	}
}
