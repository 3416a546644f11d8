package ai

import (
	"sync"

	"github.com/theapemachine/scenes/pkg/types"
)

/*
Stream is the forward-only sequence of events produced by one request.
The channel is closed when the request is done, after which Err reports
why it stopped early, if it did. It cannot be restarted.
*/
type Stream struct {
	events chan types.AiSceneResponse
	mu     sync.Mutex
	err    error
}

func newStream(buffer int) *Stream {
	return &Stream{
		events: make(chan types.AiSceneResponse, buffer),
	}
}

func (stream *Stream) Events() <-chan types.AiSceneResponse {
	return stream.events
}

/*
Err is only meaningful once Events has been drained. Cancellation is not
an error and leaves it nil.
*/
func (stream *Stream) Err() error {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	return stream.err
}

/*
Collect drains the stream and returns every event.
*/
func (stream *Stream) Collect() ([]types.AiSceneResponse, error) {
	out := make([]types.AiSceneResponse, 0)

	for event := range stream.events {
		out = append(out, event)
	}

	return out, stream.Err()
}

func (stream *Stream) fail(err error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	stream.err = err
}
