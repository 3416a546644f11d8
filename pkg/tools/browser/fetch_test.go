package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/scenes/pkg/tools"
)

func TestFetchDataURL(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a browser")
	}

	html := `<html><head><title>RodTest</title></head><body><p id="g">hello</p></body></html>`

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Fetch(ctx, "data:text/html,"+html, "#g")

	if err != nil {
		t.Skipf("browser not available or other fetch error: %v", err)
	}

	assert.Equal(t, "RodTest", res.Title)
	assert.Equal(t, "hello", res.Text)
}

func TestFetchRejectsScheme(t *testing.T) {
	_, err := Fetch(context.Background(), "file:///etc/passwd", "")
	assert.Error(t, err)
}

func TestServiceNeedsURL(t *testing.T) {
	arguments, err := tools.ParseArguments(`{"selector":"body"}`)
	require.NoError(t, err)

	_, err = Service()(context.Background(), arguments)
	assert.EqualError(t, err, "url is required")
}
