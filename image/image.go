// Package image orchestrates pull -> cache -> extract, producing a ready
// rootfs directory for a given image reference.
package image

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcontainer/jcontainer/imageref"
	"github.com/jcontainer/jcontainer/layer"
	"github.com/jcontainer/jcontainer/registry"
)

const completeSentinel = ".complete"

// Manager resolves image references to ready rootfs directories, caching
// extracted layers on disk.
type Manager struct {
	CacheRoot string
	Client    *registry.Client
}

// NewManager returns a Manager rooted at cacheRoot (typically
// "$HOME/.jcontainer/cache").
func NewManager(cacheRoot string) *Manager {
	return &Manager{
		CacheRoot: cacheRoot,
		Client:    registry.NewClient(),
	}
}

func (m *Manager) imageDir(ref imageref.Ref) string {
	return filepath.Join(m.CacheRoot, ref.Namespace, ref.Image, ref.Tag)
}

// Pull ensures ref's rootfs is present on disk, pulling and extracting it if
// necessary, and returns the rootfs path.
func (m *Manager) Pull(ref imageref.Ref) (string, error) {
	dir := m.imageDir(ref)
	rootfs := filepath.Join(dir, "rootfs")
	sentinel := filepath.Join(dir, completeSentinel)

	if fi, err := os.Stat(sentinel); err == nil && !fi.IsDir() {
		if rfi, err := os.Stat(rootfs); err == nil && rfi.IsDir() {
			slog.Info("image.Pull cache hit", "ref", ref.FullName(), "rootfs", rootfs)
			return rootfs, nil
		}
	}

	slog.Info("image.Pull cache miss, clearing partial tree", "ref", ref.FullName(), "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("io-error: clearing partial image dir: %w", err)
	}

	if err := m.pullFresh(ref, dir, rootfs); err != nil {
		return "", err
	}
	return rootfs, nil
}

func (m *Manager) pullFresh(ref imageref.Ref, dir, rootfs string) error {
	token, err := m.Client.Token(ref)
	if err != nil {
		return fmt.Errorf("pulling %s: %w", ref.FullName(), err)
	}

	resolved, err := m.Client.Manifest(ref, token)
	if err != nil {
		return fmt.Errorf("pulling %s: %w", ref.FullName(), err)
	}

	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return fmt.Errorf("io-error: creating rootfs dir: %w", err)
	}

	layersDir := filepath.Join(dir, "layers")
	if err := os.MkdirAll(layersDir, 0o755); err != nil {
		return fmt.Errorf("io-error: creating layers dir: %w", err)
	}

	for i, desc := range resolved.Manifest.Layers {
		slog.Info("image.Pull fetching layer", "ref", ref.FullName(), "index", i, "digest", desc.Digest.String())

		blob, err := m.Client.Blob(ref, desc.Digest, token)
		if err != nil {
			return fmt.Errorf("pulling layer %s: %w", desc.Digest.String(), err)
		}

		tarballPath := filepath.Join(layersDir, fmt.Sprintf("%d.tar.gz", i))
		err = writeBlobToFile(tarballPath, blob)
		blob.Close()
		if err != nil {
			return fmt.Errorf("io-error: staging layer %s: %w", desc.Digest.String(), err)
		}

		f, err := os.Open(tarballPath)
		if err != nil {
			return fmt.Errorf("io-error: reopening staged layer: %w", err)
		}
		err = layer.Apply(rootfs, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("extract-error: applying layer %s: %w", desc.Digest.String(), err)
		}

		if err := os.Remove(tarballPath); err != nil {
			slog.Warn("image.Pull could not reclaim layer tarball", "path", tarballPath, "error", err)
		}
	}

	if err := os.Remove(layersDir); err != nil {
		slog.Warn("image.Pull could not remove empty layers dir", "dir", layersDir, "error", err)
	}

	if err := os.WriteFile(filepath.Join(dir, completeSentinel), nil, 0o644); err != nil {
		return fmt.Errorf("io-error: writing completion sentinel: %w", err)
	}

	return nil
}

func writeBlobToFile(path string, blob io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, blob)
	return err
}
