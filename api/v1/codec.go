package distlockv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype every distlock call uses.
// Clients select it with grpc.CallContentSubtype(CodecName); servers pick
// it up from the request content type.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec encodes service messages as JSON. Protobuf well-known types
// (google.protobuf.Empty) go through protojson.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return CodecName
}
