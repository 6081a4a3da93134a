package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiolabs/curio/internal/registry"
	"github.com/curiolabs/curio/internal/store"
)

func TestDefinitionFlags(t *testing.T) {
	p := NewProvider(nil, nil)
	def := p.Definition()

	assert.Equal(t, "sources", def.ID)
	assert.Equal(t, registry.CategorySources, def.Category)

	byID := make(map[string]registry.Tool)
	for _, tool := range def.Tools {
		byID[tool.ID] = tool
	}

	assert.True(t, byID["sources.fetch"].Cacheable)
	assert.False(t, byID["sources.fetch"].RequiresApproval)
	assert.True(t, byID["sources.delete"].RequiresApproval)
	assert.NotEmpty(t, byID["sources.delete"].ApprovalReason)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Greeting</title></head><body><h1>Hello</h1></body></html>"))
	}))
	defer srv.Close()

	p := NewProvider(nil, nil)
	result, err := p.Execute(context.Background(), "sources.fetch", map[string]any{"url": srv.URL})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Contains(t, result.Data["content"], "<h1>Hello</h1>")
	assert.Equal(t, "Greeting", result.Data["title"])
	assert.Contains(t, result.Data["media_type"], "text/html")
	assert.NotEmpty(t, result.Data["charset"])
	assert.Equal(t, 200, result.Data["status"])
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(nil, nil)
	result, err := p.Execute(context.Background(), "sources.fetch", map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, *result.Error, "404")
}

func TestFetchRejectsBadParams(t *testing.T) {
	p := NewProvider(nil, nil)

	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing url", map[string]any{}},
		{"empty url", map[string]any{"url": ""}},
		{"non-string url", map[string]any{"url": 42}},
		{"file scheme", map[string]any{"url": "file:///etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Execute(context.Background(), "sources.fetch", tt.params)
			require.NoError(t, err)
			assert.False(t, result.Success)
		})
	}
}

func TestSaveListGetDelete(t *testing.T) {
	p := NewProvider(store.NewMemory(), nil)
	ctx := context.Background()

	saved, err := p.Execute(ctx, "sources.save", map[string]any{
		"url":     "https://example.com/a",
		"title":   "Example",
		"content": "<p>body text</p>",
	})
	require.NoError(t, err)
	require.True(t, saved.Success)
	id, ok := saved.Data["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	listed, err := p.Execute(ctx, "sources.list", nil)
	require.NoError(t, err)
	require.True(t, listed.Success)
	assert.Len(t, listed.Data["sources"], 1)

	got, err := p.Execute(ctx, "sources.get", map[string]any{"id": id})
	require.NoError(t, err)
	require.True(t, got.Success)
	assert.Equal(t, "Example", got.Data["title"])
	assert.Equal(t, "<p>body text</p>", got.Data["content"])

	deleted, err := p.Execute(ctx, "sources.delete", map[string]any{"id": id})
	require.NoError(t, err)
	assert.True(t, deleted.Success)

	missing, err := p.Execute(ctx, "sources.get", map[string]any{"id": id})
	require.NoError(t, err)
	assert.False(t, missing.Success)

	empty, err := p.Execute(ctx, "sources.list", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Data["sources"])
}

func TestSaveRequiresContent(t *testing.T) {
	p := NewProvider(store.NewMemory(), nil)
	result, err := p.Execute(context.Background(), "sources.save", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestNilStoreFailsSoft(t *testing.T) {
	p := NewProvider(nil, nil)
	ctx := context.Background()

	listed, err := p.Execute(ctx, "sources.list", nil)
	require.NoError(t, err)
	assert.True(t, listed.Success)
	assert.Empty(t, listed.Data["sources"])

	saved, err := p.Execute(ctx, "sources.save", map[string]any{"content": "x"})
	require.NoError(t, err)
	assert.False(t, saved.Success)

	deleted, err := p.Execute(ctx, "sources.delete", map[string]any{"id": "x"})
	require.NoError(t, err)
	assert.False(t, deleted.Success)
}

func TestUnknownTool(t *testing.T) {
	p := NewProvider(nil, nil)
	result, err := p.Execute(context.Background(), "sources.ghost", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}
