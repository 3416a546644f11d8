package ui

import "github.com/theapemachine/scenes/pkg/types"

// Message types for internal events
type eventMsg struct{ event types.AiSceneResponse }

type doneMsg struct{ err error }
