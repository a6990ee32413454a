// Package layer applies gzipped OCI tar layers onto a root filesystem,
// honoring whiteout and opaque-whiteout semantics. The core loop is modeled
// on sampcj-2013-codecrafters-docker-go's app/file.go untar, generalized to
// the full whiteout/permission contract spec'd for this runtime.
package layer

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	opaqueWhiteout = ".wh..wh..opq"
	whiteoutPrefix = ".wh."
)

// Apply streams r (a gzipped tar) and applies every entry onto rootfs,
// honoring the entry processing rules from spec.md §4.3. It returns after
// the first unrecoverable error; entries that merely fail a best-effort step
// (chmod) do not abort extraction.
func Apply(rootfs string, r io.Reader) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		case header == nil:
			continue
		}

		if err := applyEntry(rootfs, header, tr); err != nil {
			return err
		}
	}
}

func applyEntry(rootfs string, header *tar.Header, r io.Reader) error {
	name := normalizeName(header.Name)
	if name == "" {
		return nil
	}

	target, ok := safeJoin(rootfs, name)
	if !ok {
		// Path-traversal defense: silently skip, per spec.md §4.3 step 2.
		return nil
	}

	base := filepath.Base(target)
	dir := filepath.Dir(target)

	if base == opaqueWhiteout {
		return emptyDir(dir)
	}

	if strings.HasPrefix(base, whiteoutPrefix) {
		victim := filepath.Join(dir, strings.TrimPrefix(base, whiteoutPrefix))
		return os.RemoveAll(victim)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
		chmodBestEffort(target, header.Mode)
		return nil

	case tar.TypeSymlink:
		os.RemoveAll(target)
		return os.Symlink(header.Linkname, target)

	case tar.TypeLink:
		linkTarget, ok := safeJoin(rootfs, normalizeName(header.Linkname))
		if !ok {
			return nil
		}
		if _, err := os.Lstat(linkTarget); err != nil {
			return nil
		}
		os.RemoveAll(target)
		return os.Link(linkTarget, target)

	case tar.TypeReg:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		chmodBestEffort(target, header.Mode)
		return nil

	default:
		// Unrecognized entry types (devices, fifos, ...) are skipped.
		return nil
	}
}

// normalizeName strips a leading "./" and rejects empty names and ".".
func normalizeName(name string) string {
	name = strings.TrimPrefix(name, "./")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// safeJoin joins name onto rootfs and verifies the result still lies under
// rootfs, defending against path traversal via "../" segments or absolute
// paths embedded in the tar entry name.
func safeJoin(rootfs, name string) (string, bool) {
	rootfs = filepath.Clean(rootfs)
	target := filepath.Join(rootfs, name)
	if target != rootfs && !strings.HasPrefix(target, rootfs+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

// emptyDir deletes every child of dir, recursively, but leaves dir itself in
// place (an opaque whiteout empties a directory, it does not remove it).
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// chmodBestEffort translates the tar 9-bit mode to POSIX permissions and
// applies it. Failure (e.g. on a non-POSIX host) is ignored.
func chmodBestEffort(path string, mode int64) {
	_ = os.Chmod(path, os.FileMode(mode)&os.ModePerm)
}
