// Package imageref parses textual OCI image references into their
// constituent (registry, namespace, image, tag) parts.
package imageref

import (
	"errors"
	"strings"
)

const (
	// DefaultRegistry is used when a reference carries no explicit registry host.
	DefaultRegistry = "registry-1.docker.io"
	// DefaultNamespace is used when a reference carries no explicit namespace.
	DefaultNamespace = "library"
	// DefaultTag is used when a reference carries no explicit tag.
	DefaultTag = "latest"
)

// ErrEmptyImage is returned by Parse when the image component is empty.
var ErrEmptyImage = errors.New("image reference has empty image name")

// Ref is an immutable parsed image reference.
type Ref struct {
	Registry  string
	Namespace string
	Image     string
	Tag       string
}

// Parse parses s into a Ref, applying the defaults documented in spec.md §3:
//
//   - the rightmost ':' is a tag iff no '/' follows it
//   - a leading path segment is a registry iff it contains '.' or ':'
//   - otherwise the leading segment is a namespace
//   - deep namespaces (more than one intermediate segment) are joined with '/'
func Parse(s string) (Ref, error) {
	rest := s

	tag := DefaultTag
	if idx := strings.LastIndex(rest, ":"); idx >= 0 && !strings.Contains(rest[idx+1:], "/") {
		tag = rest[idx+1:]
		rest = rest[:idx]
	}

	segments := strings.Split(rest, "/")

	registry := DefaultRegistry
	namespace := DefaultNamespace

	switch len(segments) {
	case 0:
		return Ref{}, ErrEmptyImage
	case 1:
		// Just an image name, e.g. "alpine".
	default:
		first := segments[0]
		if strings.ContainsAny(first, ".:") {
			registry = first
			segments = segments[1:]
		}
		if len(segments) > 1 {
			namespace = strings.Join(segments[:len(segments)-1], "/")
		}
	}

	image := segments[len(segments)-1]
	if image == "" {
		return Ref{}, ErrEmptyImage
	}

	return Ref{
		Registry:  registry,
		Namespace: namespace,
		Image:     image,
		Tag:       tag,
	}, nil
}

// Repository returns the "<namespace>/<image>" form used in registry API paths.
func (r Ref) Repository() string {
	return r.Namespace + "/" + r.Image
}

// FullName renders r back into its canonical textual form. Parsing FullName
// always round-trips to an equivalent Ref.
func (r Ref) FullName() string {
	registry := r.Registry
	if registry == "" {
		registry = DefaultRegistry
	}
	namespace := r.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	tag := r.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return registry + "/" + namespace + "/" + r.Image + ":" + tag
}
