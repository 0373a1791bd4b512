package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopImageServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hat.svg"), []byte("<svg>hat</svg>"), 0o644))
	server := ShopImageServer(dir)

	t.Run("existing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest("GET", "/hat.svg", nil))
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "<svg>hat</svg>", w.Body.String())
	})

	t.Run("missing file gets placeholder", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest("GET", "/missing.png", nil))
		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "SHOP")
	})

	t.Run("traversal stays inside dir", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/x", nil)
		r.URL.Path = "/../../etc/passwd"
		w := httptest.NewRecorder()
		server.ServeHTTP(w, r)
		assert.Contains(t, w.Body.String(), "SHOP")
	})
}


func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/settings", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
