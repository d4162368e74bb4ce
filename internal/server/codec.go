package server

import "encoding/json"

// jsonCodec is the wire codec commitlogd's gRPC service runs on. There is
// no protoc step in this environment, so messages travel as plain JSON
// instead of protobuf wire bytes — see DESIGN.md for why that's the right
// tradeoff here rather than hand-authoring generated marshal code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }
