package appshell

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContentHandler(t *testing.T) (*PackageContentHandler, string) {
	t.Helper()
	dir := writeTestPackage(t, `{
		"name": "notes <beta>",
		"background_scripts": ["bg.js", "lib/sync.js"]
	}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg.js"), []byte("console.log('bg')"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "sync.js"), []byte("console.log('sync')"), 0o644))

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	return NewPackageContentHandler(dir, pkg.Manifest), dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBackgroundDocumentListsScriptsInOrder(t *testing.T) {
	handler, _ := newTestContentHandler(t)

	rec := get(t, handler, "/"+backgroundDocument)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	first := `<script src="/bg.js"></script>`
	second := `<script src="/lib/sync.js"></script>`
	assert.Contains(t, body, first)
	assert.Contains(t, body, second)
	assert.Less(t, strings.Index(body, first), strings.Index(body, second))
}

func TestBackgroundDocumentEscapesManifestValues(t *testing.T) {
	handler, _ := newTestContentHandler(t)

	body := get(t, handler, "/"+backgroundDocument).Body.String()
	assert.Contains(t, body, "notes &lt;beta&gt;")
	assert.NotContains(t, body, "<beta>")
}

func TestServesPackagedFile(t *testing.T) {
	handler, _ := newTestContentHandler(t)

	rec := get(t, handler, "/bg.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('bg')", rec.Body.String())

	rec = get(t, handler, "/lib/sync.js")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingPackagedFileIs404(t *testing.T) {
	handler, _ := newTestContentHandler(t)

	assert.Equal(t, http.StatusNotFound, get(t, handler, "/nope.js").Code)
}

func TestDirectoryRequestsAre404(t *testing.T) {
	handler, _ := newTestContentHandler(t)

	assert.Equal(t, http.StatusNotFound, get(t, handler, "/lib").Code)
}

func TestTraversalIsConfinedToPackageRoot(t *testing.T) {
	handler, dir := newTestContentHandler(t)

	secret := filepath.Join(filepath.Dir(dir), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("outside"), 0o644))

	rec := get(t, handler, "/../secret.txt")
	assert.NotEqual(t, "outside", rec.Body.String())
}
