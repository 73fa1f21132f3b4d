package events

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"task-recurrence-service/pkg/config"
)

// Codec turns event payloads into message bodies and back.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	ContentType() string
}

// NewCodec returns the codec for the configured encoding.
func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case "", config.EncodingJSON:
		return JSONCodec{}, nil
	case config.EncodingProto:
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported event encoding %q", encoding)
	}
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (JSONCodec) ContentType() string { return "application/json" }

// ProtoCodec carries the JSON document of an event inside a
// google.protobuf.Struct.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("event is not a JSON object: %w", err)
	}
	st, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build protobuf struct: %w", err)
	}
	return proto.Marshal(st)
}

func (ProtoCodec) Unmarshal(data []byte, v interface{}) error {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to decode protobuf struct: %w", err)
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (ProtoCodec) ContentType() string { return "application/x-protobuf" }
