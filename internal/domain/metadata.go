package domain

import (
	"bytes"
	"encoding/json"
)

// Metadata is free-form JSON attached to documents, chunks, conversations and
// messages. It is stored and returned verbatim.
type Metadata json.RawMessage

// MetadataKeyIngestionError is the metadata field annotated with the reason
// a document failed ingestion.
const MetadataKeyIngestionError = "ingestion_error"

// EmptyMetadata is stored when a caller supplies no metadata.
var EmptyMetadata = Metadata(`{}`)

// Valid reports whether m is empty or well-formed JSON.
func (m Metadata) Valid() bool {
	if len(m) == 0 {
		return true
	}
	return json.Valid(m)
}

// OrEmpty returns m, or an empty object when m is unset.
func (m Metadata) OrEmpty() Metadata {
	if len(bytes.TrimSpace(m)) == 0 {
		return EmptyMetadata
	}
	return m
}

// MarshalJSON emits the raw value, or {} when unset.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return m.OrEmpty(), nil
}

// UnmarshalJSON stores a copy of the raw value.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = append((*m)[0:0], data...)
	return nil
}

// WithField returns a copy of m with key set to value when m is a JSON object
// or unset. Any other JSON value is returned unchanged along with false.
func (m Metadata) WithField(key string, value any) (Metadata, bool) {
	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(m)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return m, false
		}
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return m, false
		}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return m, false
	}
	fields[key] = encoded

	out, err := json.Marshal(fields)
	if err != nil {
		return m, false
	}
	return Metadata(out), true
}
