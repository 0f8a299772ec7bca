package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:assets
var assetsFS embed.FS

// AssetsFS returns the embedded assets/ filesystem with the "assets" prefix stripped.
func AssetsFS() (fs.FS, error) {
	return fs.Sub(assetsFS, "assets")
}

// Handler returns an http.Handler that serves the dashboard page and the
// generated data files. Data files are mounted under /data/ straight from
// dataDir and served with no-store so a re-generate shows up on refresh.
func Handler(dataDir string) (http.Handler, error) {
	sub, err := AssetsFS()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/data/", noCache(http.StripPrefix("/data/", http.FileServer(http.Dir(dataDir)))))
	mux.Handle("/", http.FileServerFS(sub))
	return mux, nil
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
