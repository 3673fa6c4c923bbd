package grpcserver

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// JSONSubtype is the optional content-subtype (application/grpc+json). Callers that
// do not ask for it get the default protobuf codec.
const JSONSubtype = "json"

var (
	jsonMarshal   = protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}
	jsonUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// jsonCodec carries the same messages as protobuf JSON with the .proto field names.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("json codec: %T is not a proto message", v)
	}
	return jsonMarshal.Marshal(m)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("json codec: %T is not a proto message", v)
	}
	return jsonUnmarshal.Unmarshal(data, m)
}

func (jsonCodec) Name() string {
	return JSONSubtype
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
