package jsonrpc

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const Version = "2.0"

type RPCRequest struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      stdjson.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string             `json:"method"`
	Params  stdjson.RawMessage `json:"params,omitempty"`
}

/*
IsNotification reports a request without an id, which gets no response.
*/
func (request *RPCRequest) IsNotification() bool {
	return len(request.ID) == 0 || string(request.ID) == "null"
}

/*
Decode unmarshals the params into v. Empty params leave v untouched.
*/
func (request *RPCRequest) Decode(v any) error {
	if len(request.Params) == 0 {
		return nil
	}

	return json.Unmarshal(request.Params, v)
}
