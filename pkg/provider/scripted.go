package provider

import (
	"context"
	"sync"

	"github.com/theapemachine/scenes/pkg/errors"
)

/*
Scripted replays canned responses in order and records every request it
receives. Once the script runs out it keeps returning the last entry, so a
deterministic stub can answer any number of identical calls.
*/
type Scripted struct {
	mu       sync.Mutex
	steps    []ScriptStep
	cursor   int
	requests []Request
}

/*
ScriptStep is either a response or an error.
*/
type ScriptStep struct {
	Response *Response
	Err      error
}

func NewScripted(steps ...ScriptStep) *Scripted {
	return &Scripted{steps: steps}
}

func Reply(content string) ScriptStep {
	return ScriptStep{Response: &Response{Content: content}}
}

func CallTools(calls ...ToolCall) ScriptStep {
	return ScriptStep{Response: &Response{ToolCalls: calls}}
}

func Fail(err error) ScriptStep {
	return ScriptStep{Err: err}
}

func (scripted *Scripted) Complete(ctx context.Context, request Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scripted.mu.Lock()
	defer scripted.mu.Unlock()

	scripted.requests = append(scripted.requests, request)

	if len(scripted.steps) == 0 {
		return nil, errors.New("scripted provider has no steps")
	}

	step := scripted.steps[len(scripted.steps)-1]

	if scripted.cursor < len(scripted.steps) {
		step = scripted.steps[scripted.cursor]
		scripted.cursor++
	}

	if step.Err != nil {
		return nil, step.Err
	}

	response := *step.Response
	response.ToolCalls = append([]ToolCall(nil), step.Response.ToolCalls...)

	return &response, nil
}

/*
Factory returns a factory that always hands out this same script, so
consecutive rounds continue where the previous one stopped.
*/
func (scripted *Scripted) Factory() Factory {
	return func() Interface { return scripted }
}

func (scripted *Scripted) Requests() []Request {
	scripted.mu.Lock()
	defer scripted.mu.Unlock()

	return append([]Request(nil), scripted.requests...)
}

func (scripted *Scripted) Calls() int {
	scripted.mu.Lock()
	defer scripted.mu.Unlock()

	return len(scripted.requests)
}
