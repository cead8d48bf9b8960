package logo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLoaderOrder(t *testing.T) {
	l := NewLoader("logo", nil)
	assert.Equal(t, []string{"logo.svg", "logo.png", "logo.jpg", "logo.jpeg"}, l.Candidates())

	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "logo.svg", cur)

	for _, want := range []string{"logo.png", "logo.jpg", "logo.jpeg"} {
		next, ok := l.Fail()
		require.True(t, ok)
		assert.Equal(t, want, next)
		assert.Equal(t, StateTrying, l.State())
	}
}

func TestLoaderFallbackOnce(t *testing.T) {
	l := NewLoader("logo", nil)
	calls := 0
	l.OnFallback(func() { calls++ })

	for i := 0; i < 4; i++ {
		l.Fail()
	}
	assert.Equal(t, StateTextFallback, l.State())
	assert.Equal(t, 1, calls)

	_, ok := l.Current()
	assert.False(t, ok)

	// Late error events after the fallback change nothing.
	_, ok = l.Fail()
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestLoaderLoaded(t *testing.T) {
	l := NewLoader("logo", nil)
	l.Fail()
	l.Loaded()

	assert.Equal(t, StateLoaded, l.State())
	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "logo.png", cur)
}

func TestLoaderCustomExtensions(t *testing.T) {
	l := NewLoader("brand", []string{" .PNG", "", "webp"})
	assert.Equal(t, []string{"brand.png", "brand.webp"}, l.Candidates())
}

func TestLoaderReset(t *testing.T) {
	l := NewLoader("logo", []string{"svg"})
	calls := 0
	l.OnFallback(func() { calls++ })

	l.Fail()
	l.Reset()
	assert.Equal(t, StateTrying, l.State())
	l.Fail()
	assert.Equal(t, 2, calls)
}

func TestResolveDir(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string][]byte
		wantState State
		wantFile  string
	}{
		{
			name:      "svg wins",
			files:     map[string][]byte{"logo.svg": []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), "logo.png": pngHeader},
			wantState: StateLoaded,
			wantFile:  "logo.svg",
		},
		{
			name:      "broken svg falls through to png",
			files:     map[string][]byte{"logo.svg": []byte("not an image"), "logo.png": pngHeader},
			wantState: StateLoaded,
			wantFile:  "logo.png",
		},
		{
			name:      "empty file skipped",
			files:     map[string][]byte{"logo.png": {}, "logo.jpeg": {0xFF, 0xD8, 0xFF, 0xE0}},
			wantState: StateLoaded,
			wantFile:  "logo.jpeg",
		},
		{
			name:      "nothing loads",
			files:     map[string][]byte{"readme.txt": []byte("hi")},
			wantState: StateTextFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, data := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
			}

			l := NewLoader("logo", nil)
			fallbacks := 0
			l.OnFallback(func() { fallbacks++ })

			state, err := Resolve(context.Background(), l, DirProber{Dir: dir})
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, state)

			if tt.wantState == StateLoaded {
				cur, _ := l.Current()
				assert.Equal(t, tt.wantFile, cur)
				assert.Zero(t, fallbacks)
			} else {
				assert.Equal(t, 1, fallbacks)
			}
		})
	}
}

func TestResolveHTTP(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path == "/static/logo.jpg" {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	l := NewLoader("logo", nil)
	state, err := Resolve(context.Background(), l, HTTPProber{BaseURL: server.URL + "/static/", Client: server.Client()})
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, []string{"/static/logo.svg", "/static/logo.png", "/static/logo.jpg"}, requested)
}

func TestResolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader("logo", nil)
	state, err := Resolve(ctx, l, ProberFunc(func(context.Context, string) error {
		return errors.New("unreachable")
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateTrying, state)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "trying", StateTrying.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "text_fallback", StateTextFallback.String())
}
