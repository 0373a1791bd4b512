package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#fdf6e3"/><circle cx="100" cy="90" r="45" fill="#f5c542" stroke="#c9971c" stroke-width="6"/><text x="100" y="102" text-anchor="middle" font-family="Arial" font-size="36" font-weight="bold" fill="#c9971c">C</text><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">SHOP</text></svg>`

// ShopImageServer serves shop item images from dir. Missing files get a
// placeholder coin so broken image_url values still render.
func ShopImageServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		path := filepath.Join(dir, name)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
