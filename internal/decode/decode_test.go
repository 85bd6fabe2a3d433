package decode

import (
	"testing"

	"cdpaction/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBody(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		req := traffic.NewRequest("POST", "https://github.com/_graphql")
		req.Body = []byte(`{"query":"q","variables":{"id":"I_1"}}`)

		obj, ok := Object(Body(req))
		require.True(t, ok)
		assert.Equal(t, "q", obj["query"])
		assert.Equal(t, map[string]any{"id": "I_1"}, obj["variables"])
	})

	t.Run("invalid json returns text", func(t *testing.T) {
		req := traffic.NewRequest("POST", "https://github.com/_graphql")
		req.Body = []byte(`{not json`)

		assert.Equal(t, "{not json", Body(req))
		_, ok := Object(Body(req))
		assert.False(t, ok)
	})

	t.Run("non post is ignored", func(t *testing.T) {
		req := traffic.NewRequest("GET", "https://github.com/_graphql")
		req.Body = []byte(`{"a":1}`)
		assert.Nil(t, Body(req))
	})

	t.Run("empty body", func(t *testing.T) {
		assert.Nil(t, Body(traffic.NewRequest("POST", "https://github.com/x")))
		assert.Nil(t, Body(nil))
	})
}

func TestForm(t *testing.T) {
	got := Form(map[string][]string{
		"comment[body]":     {"LGTM"},
		"comment_and_close": {"1"},
		"labels[]":          {"bug", "ui"},
	})

	assert.Equal(t, map[string]any{
		"comment[body]":     "LGTM",
		"comment_and_close": "1",
		"labels[]":          []any{"bug", "ui"},
	}, got)
	assert.Nil(t, Form(nil))
}
