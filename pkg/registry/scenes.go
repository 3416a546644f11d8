package registry

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/scenes/pkg/provider"
)

/*
toolName is what chat backends accept as a tool name. Scenes are offered
to the planner as tools, so scene names have to satisfy it too.
*/
var toolName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

/*
Scene is a named bundle of an activation prompt, the inbound paths that
select it, and the functions it owns.
*/
type Scene struct {
	Name        string
	Description string
	Prompt      string
	Paths       []*regexp.Regexp
	Functions   []string
}

/*
Matches reports whether any of the scene's path patterns match.
*/
func (scene *Scene) Matches(path string) bool {
	for _, pattern := range scene.Paths {
		if pattern.MatchString(path) {
			return true
		}
	}

	return false
}

/*
Contribution is the system turn the scene adds to a chat call while it is
the active scene of a round.
*/
func (scene *Scene) Contribution() provider.Message {
	if scene.Prompt != "" {
		return provider.SystemMessage(scene.Prompt)
	}

	return provider.SystemMessage(fmt.Sprintf("You are handling %s: %s", scene.Name, scene.Description))
}

/*
Tool describes the scene to the planner, which picks scenes by calling
them as if they were functions.
*/
func (scene *Scene) Tool() provider.Tool {
	return provider.Tool{
		Name:        scene.Name,
		Description: scene.Description,
	}
}

func (scene *Scene) validate() error {
	validation := valgo.Is(valgo.String(scene.Name, "name").Not().Blank())

	if !validation.Valid() {
		return validation.Error()
	}

	if !toolName.MatchString(scene.Name) {
		return fmt.Errorf("scene name %q must match %s", scene.Name, toolName)
	}

	return nil
}

/*
Scenes is a read-mostly registry of scenes. It is filled at startup and
then only read by request handling code.
*/
type Scenes struct {
	mu     sync.RWMutex
	order  []string
	scenes map[string]*Scene
}

func NewScenes() *Scenes {
	return &Scenes{
		scenes: make(map[string]*Scene),
	}
}

/*
Register adds the scene or replaces the one with the same name. A replaced
scene moves to the end of the registration order.
*/
func (registry *Scenes) Register(scene *Scene) error {
	if err := scene.validate(); err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.put(scene)
	log.Debug("registered scene", "name", scene.Name, "functions", len(scene.Functions))

	return nil
}

func (registry *Scenes) put(scene *Scene) {
	if _, ok := registry.scenes[scene.Name]; ok {
		registry.order = slices.DeleteFunc(registry.order, func(name string) bool {
			return name == scene.Name
		})
	}

	registry.order = append(registry.order, scene.Name)
	registry.scenes[scene.Name] = scene
}

/*
TryGet returns the scene if it was registered.
*/
func (registry *Scenes) TryGet(name string) (*Scene, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	scene, ok := registry.scenes[name]
	return scene, ok
}

/*
GetOrCreate returns the registered scene, registering an empty one first
when the name is unknown.
*/
func (registry *Scenes) GetOrCreate(name string) *Scene {
	if scene, ok := registry.TryGet(name); ok {
		return scene
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if scene, ok := registry.scenes[name]; ok {
		return scene
	}

	scene := &Scene{Name: name}
	registry.put(scene)

	return scene
}

/*
All returns the scenes in registration order.
*/
func (registry *Scenes) All() []*Scene {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := make([]*Scene, 0, len(registry.order))

	for _, name := range registry.order {
		out = append(out, registry.scenes[name])
	}

	return out
}

/*
Available returns, in registration order, the scenes not named in avoid.
*/
func (registry *Scenes) Available(avoid []string) []*Scene {
	out := make([]*Scene, 0)

	for _, scene := range registry.All() {
		if !slices.Contains(avoid, scene.Name) {
			out = append(out, scene)
		}
	}

	return out
}

/*
ScenesChooser returns the tool schemas of every scene not in avoid, in
registration order, ready to be offered to the planner.
*/
func (registry *Scenes) ScenesChooser(avoid []string) []provider.Tool {
	scenes := registry.Available(avoid)
	out := make([]provider.Tool, 0, len(scenes))

	for _, scene := range scenes {
		out = append(out, scene.Tool())
	}

	return out
}

/*
ChooseRightPath returns the name of every scene with a pattern matching
the path. More than one scene may match.
*/
func (registry *Scenes) ChooseRightPath(path string) []string {
	out := make([]string, 0)

	for _, scene := range registry.All() {
		if scene.Matches(path) {
			out = append(out, scene.Name)
		}
	}

	return out
}
