package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
TargetKind names the kind of invocation target a function dispatches to.
*/
type TargetKind string

const (
	TargetNone    TargetKind = ""
	TargetHTTP    TargetKind = "http"
	TargetService TargetKind = "service"
	TargetMCP     TargetKind = "mcp"
)

/*
Mutator rewrites the text of one argument before it is placed into an HTTP
request.
*/
type Mutator func(value string) string

/*
HTTPTarget describes an HTTP call. Placeholders of the form {name} in the
URL are filled from the argument with that name.
*/
type HTTPTarget struct {
	Method   string
	URL      string
	Headers  map[string]string
	Mutators map[string]Mutator
}

/*
ServiceTarget names a local service resolved when the call is made.
*/
type ServiceTarget struct {
	Name string
}

/*
Chooser contributes extra conversation turns while a scene that uses the
function is active.
*/
type Chooser func(scene *Scene) []provider.Message

/*
StaticChooser contributes the same system turn for every scene.
*/
func StaticChooser(text string) Chooser {
	return func(scene *Scene) []provider.Message {
		return []provider.Message{provider.SystemMessage(text)}
	}
}

/*
Function is one capability a chat turn may request. At most one of HTTP,
Service and MCP is set.
*/
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any
	Scenes      []string
	AllScenes   bool
	Streaming   bool
	HTTP        *HTTPTarget
	Service     *ServiceTarget
	MCP         *types.McpToolCall
	Chooser     Chooser
}

/*
Kind reports the invocation target that is set.
*/
func (function *Function) Kind() TargetKind {
	switch {
	case function.HTTP != nil:
		return TargetHTTP
	case function.Service != nil:
		return TargetService
	case function.MCP != nil:
		return TargetMCP
	}

	return TargetNone
}

/*
Target is a human readable identity of the invocation target, used in
errors and logs.
*/
func (function *Function) Target() string {
	switch function.Kind() {
	case TargetHTTP:
		return function.HTTP.Method + " " + function.HTTP.URL
	case TargetService:
		return "service:" + function.Service.Name
	case TargetMCP:
		return "mcp:" + function.MCP.Server + "/" + function.MCP.Tool
	}

	return "none"
}

/*
UsedBy reports whether the function belongs to the scene.
*/
func (function *Function) UsedBy(scene string) bool {
	return function.AllScenes || slices.Contains(function.Scenes, scene)
}

func (function *Function) Tool() provider.Tool {
	return provider.Tool{
		Name:        function.Name,
		Description: function.Description,
		Parameters:  function.Parameters,
	}
}

func (function *Function) targets() int {
	count := 0

	for _, set := range []bool{function.HTTP != nil, function.Service != nil, function.MCP != nil} {
		if set {
			count++
		}
	}

	return count
}

func (function *Function) validate() error {
	validation := valgo.Is(
		valgo.String(function.Name, "name").Not().Blank(),
	).Is(
		valgo.Int(function.targets(), "targets").LessOrEqualTo(1),
	)

	if !validation.Valid() {
		return validation.Error()
	}

	if !toolName.MatchString(function.Name) {
		return fmt.Errorf("function name %q must match %s", function.Name, toolName)
	}

	return nil
}

/*
Functions is the read-mostly registry of functions.
*/
type Functions struct {
	mu        sync.RWMutex
	order     []string
	functions map[string]*Function
}

func NewFunctions() *Functions {
	return &Functions{
		functions: make(map[string]*Function),
	}
}

/*
Register adds or replaces a function. It fails when more than one
invocation target is set.
*/
func (registry *Functions) Register(function *Function) error {
	if err := function.validate(); err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.put(function)
	log.Debug("registered function", "name", function.Name, "target", function.Target())

	return nil
}

func (registry *Functions) put(function *Function) {
	if _, ok := registry.functions[function.Name]; ok {
		registry.order = slices.DeleteFunc(registry.order, func(name string) bool {
			return name == function.Name
		})
	}

	registry.order = append(registry.order, function.Name)
	registry.functions[function.Name] = function
}

func (registry *Functions) TryGet(name string) (*Function, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	function, ok := registry.functions[name]
	return function, ok
}

func (registry *Functions) GetOrCreate(name string) *Function {
	if function, ok := registry.TryGet(name); ok {
		return function
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if function, ok := registry.functions[name]; ok {
		return function
	}

	function := &Function{Name: name}
	registry.put(function)

	return function
}

func (registry *Functions) All() []*Function {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := make([]*Function, 0, len(registry.order))

	for _, name := range registry.order {
		out = append(out, registry.functions[name])
	}

	return out
}

/*
For returns the functions available while the scene is active: the ones
the scene names, then every other function that declares membership, in
registration order, without duplicates.
*/
func (registry *Functions) For(scene *Scene) []*Function {
	out := make([]*Function, 0, len(scene.Functions))
	seen := make(map[string]struct{})

	for _, name := range scene.Functions {
		if function, ok := registry.TryGet(name); ok {
			out = append(out, function)
			seen[name] = struct{}{}
		}
	}

	for _, function := range registry.All() {
		if _, ok := seen[function.Name]; ok {
			continue
		}

		if function.UsedBy(scene.Name) {
			out = append(out, function)
		}
	}

	return out
}

/*
InScenes returns, in registration order, the functions used by any of the
named scenes.
*/
func (registry *Functions) InScenes(scenes []string) []*Function {
	out := make([]*Function, 0)

	for _, function := range registry.All() {
		if function.AllScenes || slices.ContainsFunc(scenes, function.UsedBy) {
			out = append(out, function)
		}
	}

	return out
}

/*
FunctionsChooser returns the tool schemas and the extra conversation turns
contributed by the functions of the active scene.
*/
func (registry *Functions) FunctionsChooser(scene *Scene) ([]provider.Tool, []provider.Message) {
	var (
		functions = registry.For(scene)
		tools     = make([]provider.Tool, 0, len(functions))
		messages  = make([]provider.Message, 0)
	)

	for _, function := range functions {
		tools = append(tools, function.Tool())

		if function.Chooser != nil {
			messages = append(messages, function.Chooser(scene)...)
		}
	}

	return tools, messages
}
