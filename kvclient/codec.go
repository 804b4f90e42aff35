package kvclient

import "encoding/json"

// jsonCodec is a grpc encoding.Codec (passed to grpc.ForceCodec in
// grpcClient.Connect, not registered globally) that marshals the plain Go
// request/response structs below with encoding/json, so grpcClient can
// call conn.Invoke directly against a fixed method name without a
// protoc-generated stub - the KV protocol here is a handful of simple
// request/response pairs, not a schema worth a .proto file of its own.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return codecName }

const codecName = "kvjson"

type putRequest struct {
	Key   string
	Value []byte
}
type putResponse struct{}

type getRequest struct {
	Key string
}
type getResponse struct {
	Value []byte
	Found bool
}

type outRequest struct {
	Key string
}
type outResponse struct{}

type scanRequest struct {
	Prefix string
	Limit  int
}
type scanResponse struct {
	Keys []string
}

type optimizeRequest struct{}
type optimizeResponse struct{}
