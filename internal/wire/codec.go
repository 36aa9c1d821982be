package wire

import "encoding/json"

// Codec frames envelope messages for the transport channel.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSON is the default codec.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
