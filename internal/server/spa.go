package server

import (
	"io/fs"
	"net/http"
	"strings"
)

// spaFileServer serves static files from an fs.FS, falling back to
// index.html for any path that doesn't match a real file so the client can
// route it.
func spaFileServer(assets fs.FS) http.Handler {
	fileServer := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if _, err := fs.Stat(assets, path); err != nil {
			r.URL.Path = "/"
		}

		fileServer.ServeHTTP(w, r)
	})
}
