package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/scenes/pkg/types"
)

func TestClientWatch(t *testing.T) {
	Convey("Given a broker behind an HTTP server", t, func() {
		broker := NewTestSSEBroker()
		srv := httptest.NewServer(http.HandlerFunc(broker.Subscribe))
		defer srv.Close()
		defer broker.Close()

		client, err := NewClient(srv.URL, "req-1")
		So(err, ShouldBeNil)
		So(client.URL, ShouldEqual, srv.URL+"/events?requestKey=req-1")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		events := make(chan types.AiSceneResponse, 4)
		done := make(chan error, 1)

		go func() {
			done <- client.Watch(ctx, func(event types.AiSceneResponse) error {
				events <- event

				if event.Status.IsTerminal() {
					return errStop
				}

				return nil
			})
		}()

		for broker.Subscribers() == 0 {
			time.Sleep(10 * time.Millisecond)
		}

		So(broker.Broadcast("req-2", types.NewAiSceneResponse("req-2", types.StatusStarting)), ShouldBeNil)
		So(broker.Broadcast("req-1", types.NewAiSceneResponse("req-1", types.StatusStarting)), ShouldBeNil)
		So(broker.Broadcast("req-1", types.NewAiSceneResponse("req-1", types.StatusFinishedOk,
			types.WithMessage("done"))), ShouldBeNil)

		Convey("It delivers the request's events until the handler stops", func() {
			So(<-done, ShouldEqual, errStop)
			So(len(events), ShouldEqual, 2)

			first := <-events
			So(first.RequestKey, ShouldEqual, "req-1")
			So(first.Status, ShouldEqual, types.StatusStarting)

			second := <-events
			So(second.Message, ShouldEqual, "done")
		})
	})
}

func TestClientRetries(t *testing.T) {
	Convey("Given a server that refuses the stream", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client, err := NewClient(srv.URL, "")
		So(err, ShouldBeNil)

		client.MaxRetries = 2
		client.baseDelay = time.Millisecond

		err = client.Watch(context.Background(), func(types.AiSceneResponse) error { return nil })

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "max retries exceeded")
		So(err.Error(), ShouldContainSubstring, "503")
	})
}

var errStop = errors.New("stop")
