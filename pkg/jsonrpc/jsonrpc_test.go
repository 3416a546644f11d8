package jsonrpc

import (
	"context"
	stdjson "encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/scenes/pkg/errors"
)

type echoRouter struct {
	servers []string
}

func (router *echoRouter) Route(ctx context.Context, server string, request *RPCRequest) RPCResponse {
	router.servers = append(router.servers, server)

	switch request.Method {
	case "echo":
		var params map[string]any

		if err := request.Decode(&params); err != nil {
			return NewErrorResponse(request.ID, errors.ErrInvalidParams)
		}

		return NewResponse(request.ID, params)
	case "fail":
		return NewErrorResponse(request.ID, errors.ErrInternal.WithMessagef("it broke"))
	}

	return NewErrorResponse(request.ID, errors.ErrMethodNotFound)
}

func decode(buf []byte) map[string]any {
	out := map[string]any{}
	So(json.Unmarshal(buf, &out), ShouldBeNil)
	return out
}

func TestHandle(t *testing.T) {
	Convey("Given a router", t, func() {
		router := &echoRouter{}
		ctx := context.Background()

		Convey("A single request gets its reply with the same id", func() {
			out := decode(Handle(ctx, "main", []byte(`{"jsonrpc":"2.0","id":"a","method":"echo","params":{"x":1}}`), router))
			So(out["id"], ShouldEqual, "a")
			So(out["result"], ShouldResemble, map[string]any{"x": float64(1)})
			So(router.servers, ShouldResemble, []string{"main"})
		})

		Convey("Garbage is a parse error", func() {
			out := decode(Handle(ctx, "main", []byte(`{nope`), router))
			So(out["error"].(map[string]any)["code"], ShouldEqual, float64(errors.ErrParseError.Code))
		})

		Convey("An empty body is an invalid request", func() {
			out := decode(Handle(ctx, "main", []byte("  "), router))
			So(out["error"].(map[string]any)["code"], ShouldEqual, float64(errors.ErrInvalidRequest.Code))
		})

		Convey("A wrong version never reaches the router", func() {
			out := decode(Handle(ctx, "main", []byte(`{"jsonrpc":"1.0","id":1,"method":"echo"}`), router))
			So(out["error"].(map[string]any)["code"], ShouldEqual, float64(errors.ErrInvalidRequest.Code))
			So(router.servers, ShouldBeEmpty)
		})

		Convey("A batch answers every request but not the notifications", func() {
			var out []map[string]any

			buf := Handle(ctx, "main", []byte(`[
				{"jsonrpc":"2.0","id":1,"method":"echo","params":{}},
				{"jsonrpc":"2.0","method":"echo","params":{}},
				{"jsonrpc":"2.0","id":2,"method":"missing"}
			]`), router)

			So(json.Unmarshal(buf, &out), ShouldBeNil)
			So(out, ShouldHaveLength, 2)
			So(out[1]["error"].(map[string]any)["code"], ShouldEqual, float64(errors.ErrMethodNotFound.Code))
			So(router.servers, ShouldHaveLength, 3)
		})

		Convey("An empty batch is an invalid request", func() {
			out := decode(Handle(ctx, "main", []byte(`[]`), router))
			So(out["error"].(map[string]any)["code"], ShouldEqual, float64(errors.ErrInvalidRequest.Code))
		})

		Convey("Only notifications give no reply", func() {
			So(Handle(ctx, "main", []byte(`{"jsonrpc":"2.0","method":"echo","params":{}}`), router), ShouldBeNil)
			So(Handle(ctx, "main", []byte(`[{"jsonrpc":"2.0","method":"echo","params":{}}]`), router), ShouldBeNil)
		})
	})
}

func TestRPCClient(t *testing.T) {
	Convey("Given a server speaking JSON-RPC", t, func() {
		router := &echoRouter{}
		var auth string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")

			if auth == "Bearer locked" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(Handle(r.Context(), "main", body, router))
		}))
		defer srv.Close()

		ctx := context.Background()

		Convey("Call decodes the result", func() {
			var result map[string]string

			client := NewRPCClient(srv.URL, "token")
			So(client.Call(ctx, "echo", map[string]string{"hello": "world"}, &result), ShouldBeNil)
			So(result, ShouldResemble, map[string]string{"hello": "world"})
			So(auth, ShouldEqual, "Bearer token")
		})

		Convey("A JSON-RPC error comes back as an RpcError", func() {
			err := NewRPCClient(srv.URL, "").Call(ctx, "fail", nil, nil)

			var rpcErr *errors.RpcError
			So(errors.As(err, &rpcErr), ShouldBeTrue)
			So(rpcErr.Message, ShouldEqual, "it broke")
		})

		Convey("A refused token is an error", func() {
			err := NewRPCClient(srv.URL, "locked").Call(ctx, "echo", nil, nil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unauthorized")
		})
	})
}

func TestRequest(t *testing.T) {
	Convey("A request without an id is a notification", t, func() {
		So((&RPCRequest{}).IsNotification(), ShouldBeTrue)
		So((&RPCRequest{ID: stdjson.RawMessage("null")}).IsNotification(), ShouldBeTrue)
		So((&RPCRequest{ID: stdjson.RawMessage("1")}).IsNotification(), ShouldBeFalse)
	})
}
