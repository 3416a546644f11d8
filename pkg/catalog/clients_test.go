package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/registry"
)

type fakeClient struct {
	connectErr   error
	connects     atomic.Int32
	disconnects  atomic.Int32
	lists        atomic.Int32
	barrier      *sync.WaitGroup
	barrierReady chan struct{}
}

func (fake *fakeClient) Connect(ctx context.Context) error {
	fake.connects.Add(1)

	if fake.barrier != nil {
		fake.barrier.Done()

		select {
		case <-fake.barrierReady:
		case <-time.After(2 * time.Second):
			return errors.New("connections were not attempted concurrently")
		}
	}

	return fake.connectErr
}

func (fake *fakeClient) Disconnect() error {
	fake.disconnects.Add(1)
	return nil
}

func (fake *fakeClient) CallTool(ctx context.Context, tool string, arguments map[string]any) (string, error) {
	return "called " + tool, nil
}

func (fake *fakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	fake.lists.Add(1)
	return nil, nil
}

func TestRegister(t *testing.T) {
	Convey("Given a client registry", t, func() {
		clients := NewClientRegistry()

		So(clients.Register("one", &fakeClient{}), ShouldBeNil)

		Convey("Registering the same name again fails fast", func() {
			err := clients.Register("one", &fakeClient{})

			var duplicate *errors.DuplicateRegistration
			So(errors.As(err, &duplicate), ShouldBeTrue)
			So(duplicate.Name, ShouldEqual, "one")
			So(clients.Names(), ShouldResemble, []string{"one"})
		})

		Convey("Calls are routed by server name", func() {
			result, err := clients.CallTool(context.Background(), "one", "ping", nil)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, "called ping")

			_, err = clients.CallTool(context.Background(), "two", "ping", nil)
			var notFound *NotFoundError
			So(errors.As(err, &notFound), ShouldBeTrue)
		})
	})
}

func TestConnectAll(t *testing.T) {
	Convey("Given three servers where one fails to connect", t, func() {
		var barrier sync.WaitGroup
		barrier.Add(3)
		ready := make(chan struct{})

		go func() {
			barrier.Wait()
			close(ready)
		}()

		failure := errors.New("refused")
		ok1 := &fakeClient{barrier: &barrier, barrierReady: ready}
		bad := &fakeClient{barrier: &barrier, barrierReady: ready, connectErr: failure}
		ok2 := &fakeClient{barrier: &barrier, barrierReady: ready}

		clients := NewClientRegistry()
		So(clients.Register("a", ok1), ShouldBeNil)
		So(clients.Register("b", bad), ShouldBeNil)
		So(clients.Register("c", ok2), ShouldBeNil)

		err := clients.ConnectAll(context.Background())

		Convey("Every connection was attempted concurrently", func() {
			So(ok1.connects.Load(), ShouldEqual, 1)
			So(bad.connects.Load(), ShouldEqual, 1)
			So(ok2.connects.Load(), ShouldEqual, 1)
		})

		Convey("The failure still surfaces", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, failure), ShouldBeTrue)
		})

		Convey("Only the failed server is reported as disconnected", func() {
			So(clients.Connected("a"), ShouldBeTrue)
			So(clients.Connected("b"), ShouldBeFalse)
			So(clients.Disconnected(), ShouldResemble, []string{"b"})
		})

		Convey("Tools are not imported from the failed server", func() {
			_, err := clients.ImportTools(context.Background(), "b", registry.NewFunctions(), nil)

			var connErr *ConnectionError
			So(errors.As(err, &connErr), ShouldBeTrue)
			So(connErr.Server, ShouldEqual, "b")
			So(bad.lists.Load(), ShouldEqual, 0)
		})

		Convey("DisconnectAll reaches every client", func() {
			So(clients.DisconnectAll(context.Background()), ShouldBeNil)
			So(ok1.disconnects.Load()+bad.disconnects.Load()+ok2.disconnects.Load(), ShouldEqual, 3)
		})
	})
}

func TestRegisterAll(t *testing.T) {
	Convey("Given server configurations", t, func() {
		clients := NewClientRegistry()

		Convey("Invalid transports are rejected", func() {
			err := clients.RegisterAll(NewClient, ServerConfig{Name: "x", Transport: "pigeon"})
			So(err, ShouldNotBeNil)
		})

		Convey("Missing commands or urls are rejected", func() {
			So(clients.RegisterAll(NewClient, ServerConfig{Name: "x", Transport: "stdio"}), ShouldNotBeNil)
			So(clients.RegisterAll(NewClient, ServerConfig{Name: "y", Transport: "sse"}), ShouldNotBeNil)
		})

		Convey("Valid configurations register without connecting", func() {
			err := clients.RegisterAll(NewClient,
				ServerConfig{Name: "local", Transport: "stdio", Command: "true"},
				ServerConfig{Name: "remote", Transport: "sse", URL: "http://localhost:1/sse"},
			)

			So(err, ShouldBeNil)
			So(clients.Names(), ShouldResemble, []string{"local", "remote"})
		})
	})
}

func TestInProcessClient(t *testing.T) {
	Convey("Given an in-process MCP server with an echo tool", t, func() {
		srv := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
		srv.AddTool(
			mcp.NewTool("echo", mcp.WithDescription("echoes"), mcp.WithString("text", mcp.Required())),
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				text, _ := request.GetArguments()["text"].(string)

				if text == "fail" {
					return mcp.NewToolResultError("asked to fail"), nil
				}

				return mcp.NewToolResultText("echo: " + text), nil
			},
		)

		clients := NewClientRegistry()
		So(clients.Register("local", NewInProcessClient("local", srv)), ShouldBeNil)
		So(clients.ConnectAll(context.Background()), ShouldBeNil)

		Reset(func() {
			_ = clients.DisconnectAll(context.Background())
		})

		Convey("Tools can be called", func() {
			result, err := clients.CallTool(context.Background(), "local", "echo", map[string]any{"text": "hi"})
			So(err, ShouldBeNil)
			So(result, ShouldEqual, "echo: hi")
		})

		Convey("Error results become errors", func() {
			_, err := clients.CallTool(context.Background(), "local", "echo", map[string]any{"text": "fail"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "asked to fail")
		})

		Convey("Tools can be imported as functions", func() {
			functions := registry.NewFunctions()
			imported, err := clients.ImportTools(context.Background(), "local", functions, []string{"Echo"})

			So(err, ShouldBeNil)
			So(imported, ShouldResemble, []string{"echo"})

			function, ok := functions.TryGet("echo")
			So(ok, ShouldBeTrue)
			So(function.Kind(), ShouldEqual, registry.TargetMCP)
			So(function.UsedBy("Echo"), ShouldBeTrue)
			So(function.Parameters["type"], ShouldEqual, "object")
		})
	})
}

func TestServerRegistry(t *testing.T) {
	Convey("Given a server registry", t, func() {
		servers := NewServerRegistry()
		servers.Put(Exposure{Name: "public", Scenes: []string{"Weather"}})
		servers.Put(Exposure{Name: "admin", AuthorizationPolicy: "bearer"})

		Convey("The last write wins", func() {
			servers.Put(Exposure{Name: "public", Scenes: []string{"Billing"}})
			exposure, ok := servers.Get("public")

			So(ok, ShouldBeTrue)
			So(exposure.Scenes, ShouldResemble, []string{"Billing"})
		})

		Convey("All is sorted by name", func() {
			all := servers.All()
			So(len(all), ShouldEqual, 2)
			So(all[0].Name, ShouldEqual, "admin")
		})

		Convey("Missing servers are reported", func() {
			_, ok := servers.Get("nope")
			So(ok, ShouldBeFalse)
		})
	})
}
