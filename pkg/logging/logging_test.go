package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	defer log.SetDefault(log.New(os.Stderr))

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "scenes.log")

		require.NoError(t, Init(Config{Level: "debug", Format: "json", File: path}))
		log.Debug("hello", "key", "value")
		Close()

		buf, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(buf), `"msg":"hello"`)
		assert.Contains(t, string(buf), `"key":"value"`)
	})

	t.Run("level filters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scenes.log")

		require.NoError(t, Init(Config{Level: "warn", File: path}))
		log.Info("quiet")
		log.Warn("loud")
		Close()

		buf, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(buf), "quiet")
		assert.Contains(t, string(buf), "loud")
	})

	t.Run("bad settings", func(t *testing.T) {
		assert.Error(t, Init(Config{Level: "chatty"}))
		assert.Error(t, Init(Config{Format: "xml"}))
	})
}
