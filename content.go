package appshell

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PackageContentHandler serves an unpacked application package over the
// virtual scheme. The synthesized background document is generated from
// the manifest; everything else is served straight from the package
// directory.
type PackageContentHandler struct {
	root     string
	manifest *Manifest
	router   chi.Router
}

// NewPackageContentHandler creates a handler rooted at the package
// directory.
func NewPackageContentHandler(root string, manifest *Manifest) *PackageContentHandler {
	h := &PackageContentHandler{
		root:     root,
		manifest: manifest,
	}

	r := chi.NewRouter()
	r.Get("/"+backgroundDocument, h.serveBackgroundDocument)
	r.Get("/*", h.servePackaged)
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *PackageContentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// serveBackgroundDocument generates the hidden event-page document: an
// empty page that pulls in the manifest's background scripts in order.
func (h *PackageContentHandler) serveBackgroundDocument(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	if h.manifest != nil {
		fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(h.manifest.Name))
		for _, script := range h.manifest.BackgroundScripts {
			fmt.Fprintf(&b, "<script src=\"/%s\"></script>", html.EscapeString(strings.TrimPrefix(script, "/")))
		}
	}
	b.WriteString("</head><body></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

// servePackaged serves a file out of the package directory. Paths are
// confined to the package root.
func (h *PackageContentHandler) servePackaged(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "*")
	clean := filepath.Clean("/" + requested)
	path := filepath.Join(h.root, clean)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
