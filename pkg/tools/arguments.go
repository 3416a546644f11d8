package tools

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
Kind classifies a parsed argument.
*/
type Kind int

const (
	// KindText covers strings, numbers, objects and arrays, all kept as text.
	KindText Kind = iota
	KindBool
	// KindNull marks an argument that was explicitly null.
	KindNull
)

/*
Argument is one parsed tool-call argument. Strings are unwrapped, numbers
keep their source text, objects and arrays keep their raw JSON text,
booleans are native and null is KindNull. Raw always holds the original
JSON value.
*/
type Argument struct {
	Kind Kind
	Text string
	Bool bool
	Raw  stdjson.RawMessage
}

func (argument Argument) IsNull() bool {
	return argument.Kind == KindNull
}

/*
String renders the argument the way it is substituted into requests.
A null argument renders as the empty string.
*/
func (argument Argument) String() string {
	switch argument.Kind {
	case KindBool:
		if argument.Bool {
			return "true"
		}

		return "false"
	case KindNull:
		return ""
	}

	return argument.Text
}

/*
Arguments maps argument names to their parsed values.
*/
type Arguments map[string]Argument

// InputArgument names the single argument a bare, non-object payload is stored under.
const InputArgument = "input"

/*
ParseArguments parses a tool-call payload. An empty or null payload yields
no arguments. A string, number, boolean or array is kept as the single
InputArgument. Payloads that are not valid JSON are rejected.
*/
func ParseArguments(payload string) (Arguments, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	arguments := make(Arguments)

	if len(trimmed) == 0 {
		return arguments, nil
	}

	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("arguments are not valid JSON: %s", trimmed)
		}

		argument, err := parseArgument(trimmed)

		if err != nil {
			return nil, err
		}

		if !argument.IsNull() {
			arguments[InputArgument] = argument
		}

		return arguments, nil
	}

	var fields map[string]stdjson.RawMessage

	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	for name, raw := range fields {
		argument, err := parseArgument(raw)

		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}

		arguments[name] = argument
	}

	return arguments, nil
}

func parseArgument(raw stdjson.RawMessage) (Argument, error) {
	value := bytes.TrimSpace(raw)
	argument := Argument{Raw: stdjson.RawMessage(value)}

	if len(value) == 0 {
		argument.Kind = KindNull
		return argument, nil
	}

	switch value[0] {
	case 'n':
		argument.Kind = KindNull
	case 't', 'f':
		argument.Kind = KindBool

		if err := json.Unmarshal(value, &argument.Bool); err != nil {
			return argument, err
		}
	case '"':
		argument.Kind = KindText

		if err := json.Unmarshal(value, &argument.Text); err != nil {
			return argument, err
		}
	default:
		argument.Kind = KindText
		argument.Text = string(value)
	}

	return argument, nil
}

/*
Names returns the argument names sorted, so requests built from them are
deterministic.
*/
func (arguments Arguments) Names() []string {
	names := make([]string, 0, len(arguments))

	for name := range arguments {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

/*
Values returns the arguments as raw JSON values, preserving numbers
exactly, for targets that take structured input.
*/
func (arguments Arguments) Values() map[string]any {
	out := make(map[string]any, len(arguments))

	for name, argument := range arguments {
		if argument.IsNull() {
			out[name] = nil
			continue
		}

		out[name] = argument.Raw
	}

	return out
}
