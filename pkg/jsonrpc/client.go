package jsonrpc

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/scenes/pkg/errors"
)

/*
RPCClient calls a remote exposure over HTTP.
*/
type RPCClient struct {
	URL    string
	Token  string
	client *client.Client
	nextID atomic.Int64
}

func NewRPCClient(url, token string) *RPCClient {
	return &RPCClient{
		URL:    url,
		Token:  token,
		client: client.New(),
	}
}

/*
Call sends one request and decodes the result into result, which may be
nil. A JSON-RPC error comes back as *errors.RpcError.
*/
func (rpc *RPCClient) Call(ctx context.Context, method string, params any, result any) error {
	request := RPCRequest{
		JSONRPC: Version,
		ID:      []byte(strconv.FormatInt(rpc.nextID.Add(1), 10)),
		Method:  method,
	}

	if params != nil {
		buf, err := json.Marshal(params)

		if err != nil {
			return err
		}

		request.Params = buf
	}

	header := map[string]string{"Content-Type": "application/json"}

	if rpc.Token != "" {
		header["Authorization"] = "Bearer " + rpc.Token
	}

	res, err := rpc.client.Post(rpc.URL, client.Config{Ctx: ctx, Header: header, Body: request})

	if err != nil {
		return err
	}

	defer res.Close()

	switch res.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: invalid or expired token")
	case http.StatusForbidden:
		return fmt.Errorf("forbidden: insufficient permissions")
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited")
	}

	var response struct {
		Result stdjson.RawMessage `json:"result"`
		Error  *errors.RpcError   `json:"error"`
	}

	if err := json.Unmarshal(res.Body(), &response); err != nil {
		return err
	}

	if response.Error != nil {
		return response.Error
	}

	if result != nil && len(response.Result) > 0 {
		return json.Unmarshal(response.Result, result)
	}

	return nil
}
