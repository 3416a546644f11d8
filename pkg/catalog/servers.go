package catalog

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

/*
Exposure is how this system presents itself to an external caller under a
server name: which scenes' functions it lists and the authorization
policy guarding it.
*/
type Exposure struct {
	Name                string   `json:"name" mapstructure:"name"`
	Scenes              []string `json:"scenes,omitempty" mapstructure:"scenes"`
	AuthorizationPolicy string   `json:"authorizationPolicy,omitempty" mapstructure:"policy"`
}

/*
ServerRegistry is a last-write-wins map of exposures. Reads never wait on
writers.
*/
type ServerRegistry struct {
	servers *sync.Map
}

func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{
		servers: new(sync.Map),
	}
}

func (registry *ServerRegistry) Put(exposure Exposure) {
	log.Info("exposing server", "name", exposure.Name, "scenes", exposure.Scenes)
	registry.servers.Store(exposure.Name, exposure)
}

func (registry *ServerRegistry) Get(name string) (Exposure, bool) {
	exposure, ok := registry.servers.Load(name)

	if !ok {
		return Exposure{}, false
	}

	return exposure.(Exposure), true
}

func (registry *ServerRegistry) Delete(name string) {
	registry.servers.Delete(name)
}

/*
All returns the exposures sorted by name.
*/
func (registry *ServerRegistry) All() []Exposure {
	exposures := make([]Exposure, 0)

	registry.servers.Range(func(key, value any) bool {
		exposures = append(exposures, value.(Exposure))
		return true
	})

	sort.Slice(exposures, func(i, j int) bool {
		return exposures[i].Name < exposures[j].Name
	})

	return exposures
}
