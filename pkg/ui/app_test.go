package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/scenes/pkg/ai"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/stores"
	"github.com/theapemachine/scenes/pkg/tools"
)

func newRunner(t *testing.T, steps ...provider.ScriptStep) *ai.SceneManager {
	manager, err := ai.NewSceneManager(
		ai.WithScenes(registry.NewScenes()),
		ai.WithFunctions(registry.NewFunctions()),
		ai.WithProvider(provider.NewScripted(steps...).Factory()),
		ai.WithDispatcher(tools.NewDispatcher()),
		ai.WithCache(stores.NewMemoryCache()),
	)
	require.NoError(t, err)

	return manager
}

func drain(t *testing.T, m model) model {
	for range 10 {
		msg := next(m.stream)()
		updated, _ := m.Update(msg)
		m = updated.(model)

		if _, done := msg.(doneMsg); done {
			return m
		}
	}

	t.Fatal("stream did not end")
	return m
}

func TestChat(t *testing.T) {
	m := New(context.Background(), newRunner(t, provider.Reply("Hello there.")), "").(model)

	t.Run("empty input is ignored", func(t *testing.T) {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.False(t, updated.(model).busy)
		assert.Nil(t, updated.(model).stream)
	})

	t.Run("a message streams its events", func(t *testing.T) {
		m.textarea.SetValue("hi")

		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		sent := updated.(model)

		require.True(t, sent.busy)
		require.NotNil(t, sent.stream)
		assert.Empty(t, sent.textarea.Value())
		assert.Contains(t, sent.messages[0], "hi")

		done := drain(t, sent)

		assert.False(t, done.busy)
		require.Len(t, done.messages, 3)
		assert.Contains(t, done.messages[1], "starting")
		assert.Contains(t, done.messages[2], "Hello there.")
		assert.Contains(t, done.View(), "ready")
	})
}

func TestChatClear(t *testing.T) {
	m := New(context.Background(), newRunner(t), "").(model)
	m.messages = []string{"old"}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, updated.(model).messages)
}

func TestChatFailure(t *testing.T) {
	m := New(context.Background(), newRunner(t, provider.Fail(assert.AnError)), "").(model)
	m.textarea.SetValue("hi")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	done := drain(t, updated.(model))

	require.Len(t, done.messages, 3)
	assert.Contains(t, done.messages[2], "finished-error")
}
