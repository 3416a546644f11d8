package types

/*
RequestSettings carries what the caller asked for. Scenes, when set, names
the scenes to consider and bypasses path matching.
*/
type RequestSettings struct {
	RequestKey  string   `json:"requestKey" mapstructure:"request_key"`
	Message     string   `json:"message" mapstructure:"message"`
	Path        string   `json:"path,omitempty" mapstructure:"path"`
	Scenes      []string `json:"scenes,omitempty" mapstructure:"scenes"`
	AvoidScenes []string `json:"avoidScenes,omitempty" mapstructure:"avoid_scenes"`
}

/*
ExecutionPlan is the ordered list of scenes chosen for the current round,
with the scenes that were excluded from consideration.
*/
type ExecutionPlan struct {
	Scenes   []string `json:"scenes"`
	Excluded []string `json:"excluded,omitempty"`
}

func (plan ExecutionPlan) Empty() bool {
	return len(plan.Scenes) == 0
}

/*
DirectorResponse is the verdict produced after a scene round.
*/
type DirectorResponse struct {
	ExecuteAgain bool     `json:"executeAgain"`
	CutScenes    []string `json:"cutScenes,omitempty"`
}

/*
McpToolCall binds a function to a tool on an external MCP server.
*/
type McpToolCall struct {
	Server string `json:"server" mapstructure:"server"`
	Tool   string `json:"tool" mapstructure:"tool"`
}
