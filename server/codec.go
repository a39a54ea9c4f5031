package server

import "encoding/json"

// jsonCodec lets connect handlers exchange plain structs as JSON. The
// service has no generated message types, so the default protobuf codecs
// are replaced with this one.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		// Empty unary payloads decode to the zero message.
		return nil
	}
	return json.Unmarshal(data, msg)
}
