package image

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jcontainer/jcontainer/imageref"
	"github.com/jcontainer/jcontainer/registry"
)

func buildGzippedLayer(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(body)), Mode: 0o644}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func TestPullCacheHit(t *testing.T) {
	cacheRoot := t.TempDir()
	m := NewManager(cacheRoot)

	ref, err := imageref.Parse("alpine:latest")
	if err != nil {
		t.Fatal(err)
	}

	dir := m.imageDir(ref)
	if err := os.MkdirAll(filepath.Join(dir, "rootfs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, completeSentinel), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := m.Pull(ref)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if got != filepath.Join(dir, "rootfs") {
		t.Errorf("got %q, want %q", got, filepath.Join(dir, "rootfs"))
	}
}

func TestPullEndToEnd(t *testing.T) {
	layerBytes := buildGzippedLayer(t, "greeting.txt", "hi there")

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"test-token"}`))
	})
	mux.HandleFunc("/v2/library/demo/manifests/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"mediaType":"application/vnd.oci.image.config.v1+json","digest":"sha256:cfg","size":2},"layers":[{"mediaType":"application/vnd.oci.image.layer.v1.tar+gzip","digest":"sha256:layer0","size":` + strconv.Itoa(len(layerBytes)) + `}]}`))
	})
	mux.HandleFunc("/v2/library/demo/blobs/sha256:layer0", func(w http.ResponseWriter, r *http.Request) {
		w.Write(layerBytes)
	})

	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	cacheRoot := t.TempDir()
	m := NewManager(cacheRoot)
	m.Client = registry.NewClient()
	m.Client.HTTPClient = srv.Client()

	ref := imageref.Ref{
		Registry:  strings.TrimPrefix(srv.URL, "https://"),
		Namespace: "library",
		Image:     "demo",
		Tag:       "latest",
	}

	rootfs, err := m.Pull(ref)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(rootfs, "greeting.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hi there" {
		t.Errorf("got %q, want %q", got, "hi there")
	}

	if _, err := os.Stat(filepath.Join(m.imageDir(ref), completeSentinel)); err != nil {
		t.Errorf("expected completion sentinel to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.imageDir(ref), "layers")); !os.IsNotExist(err) {
		t.Errorf("expected layers dir to be removed, stat err = %v", err)
	}
}
