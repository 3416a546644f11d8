package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keymap defines the key bindings of the chat.
type keymap struct {
	send  key.Binding
	clear key.Binding
	quit  key.Binding
}

func newKeymap() keymap {
	return keymap{
		send:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		clear: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
		quit:  key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("ctrl+c", "quit")),
	}
}

var defaultKeymap = newKeymap()
