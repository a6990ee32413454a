// Package registry implements the OCI Registry Client: bearer token
// acquisition, manifest fetching (including multi-platform index
// resolution), and blob download, against the Docker Hub v2 API and
// Docker-Hub-compatible registries.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/oriser/regroup"

	"github.com/jcontainer/jcontainer/imageref"
)

// ErrRegistry wraps any non-200 response from a registry endpoint. Every
// error returned from this package that originates from an HTTP round trip
// is wrapped with this sentinel so callers can errors.Is against it.
var ErrRegistry = errors.New("registry-error")

const (
	dockerHubAuthHost = "auth.docker.io"

	// acceptHeaders enumerates the two Docker manifest media types and
	// their two OCI equivalents, per spec.md §4.2.
	acceptHeaders = "application/vnd.docker.distribution.manifest.v2+json, " +
		"application/vnd.docker.distribution.manifest.list.v2+json, " +
		"application/vnd.oci.image.manifest.v1+json, " +
		"application/vnd.oci.image.index.v1+json"
)

// wwwAuthenticate captures the realm/service/scope triple out of a
// WWW-Authenticate challenge header, the same way
// sampcj-2013-codecrafters-docker-go's app/image.go does, for registries that
// don't follow the fixed Docker Hub token endpoint.
type wwwAuthenticate struct {
	Bearer  string `regroup:"bearer"`
	Service string `regroup:"service"`
	Scope   string `regroup:"scope"`
}

var bearerRegex = regroup.MustCompile(
	`(?i)Bearer\s+realm="(?P<bearer>[^"]*)"\s*,\s*service="(?P<service>[^"]*)"\s*,\s*scope="(?P<scope>[^"]*)"`)

// Client fetches manifests and blobs from an OCI registry.
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a Client configured with sane request timeouts.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Token acquires a bearer token scoped to "repository:<repo>:pull" for ref.
func (c *Client) Token(ref imageref.Ref) (string, error) {
	repo := ref.Repository()
	scope := fmt.Sprintf("repository:%s:pull", repo)

	tokenURL := fmt.Sprintf("https://%s/token?service=registry.docker.io&scope=%s", dockerHubAuthHost, scope)
	if ref.Registry != imageref.DefaultRegistry {
		if discovered, err := c.discoverAuthURL(ref); err == nil {
			tokenURL = discovered
		} else {
			// Fall back to the registry's own /token endpoint, the common
			// convention among self-hosted Docker-Hub-compatible registries.
			tokenURL = fmt.Sprintf("https://%s/token?service=%s&scope=%s", ref.Registry, ref.Registry, scope)
		}
	}

	resp, err := c.HTTPClient.Get(tokenURL)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %w", ErrRegistry, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrRegistry, resp.StatusCode)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSON(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %w", ErrRegistry, err)
	}

	if body.Token != "" {
		return body.Token, nil
	}
	return body.AccessToken, nil
}

// discoverAuthURL makes an unauthenticated manifest request and parses the
// WWW-Authenticate challenge to build a token URL for non-Docker-Hub
// registries.
func (c *Client) discoverAuthURL(ref imageref.Ref) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.manifestURL(ref, ref.Tag), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", acceptHeaders)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	challenge := resp.Header.Get("WWW-Authenticate")
	if challenge == "" {
		return "", errors.New("no WWW-Authenticate header present")
	}

	var auth wwwAuthenticate
	if err := bearerRegex.MatchToTarget(challenge, &auth); err != nil {
		return "", fmt.Errorf("malformed WWW-Authenticate header: %w", err)
	}

	return fmt.Sprintf("%s?service=%s&scope=%s", auth.Bearer, auth.Service, auth.Scope), nil
}

func (c *Client) manifestURL(ref imageref.Ref, tagOrDigest string) string {
	return fmt.Sprintf("https://%s/v2/%s/manifests/%s", ref.Registry, ref.Repository(), tagOrDigest)
}

func (c *Client) blobURL(ref imageref.Ref, dgst digest.Digest) string {
	return fmt.Sprintf("https://%s/v2/%s/blobs/%s", ref.Registry, ref.Repository(), dgst.String())
}

// ResolvedManifest is a single-platform OCI manifest together with the
// digest it was fetched at (useful for index resolution logging).
type ResolvedManifest struct {
	Manifest v1.Manifest
	Digest   digest.Digest
}

// Manifest fetches and resolves ref's manifest, following a single level of
// manifest-index indirection if the registry returns a fat manifest.
func (c *Client) Manifest(ref imageref.Ref, token string) (*ResolvedManifest, error) {
	manifest, d, err := c.fetchManifestOrIndex(ref, ref.Tag, token)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		return &ResolvedManifest{Manifest: *manifest, Digest: d}, nil
	}

	// We got an index back; resolve the platform digest and re-fetch. Recursion depth is 1.
	index, err := c.fetchIndex(ref, ref.Tag, token)
	if err != nil {
		return nil, err
	}

	target := selectPlatform(index)
	manifest, d, err = c.fetchManifestOrIndex(ref, target.String(), token)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, fmt.Errorf("%w: manifest index resolved to another index", ErrRegistry)
	}
	return &ResolvedManifest{Manifest: *manifest, Digest: d}, nil
}

// fetchManifestOrIndex issues the manifest request and returns a manifest if
// the body describes a single-platform image, or (nil, "", nil) if it
// describes an index (caller should use fetchIndex to parse it). The
// Docker-Content-Digest response header is validated with
// github.com/opencontainers/go-digest rather than carried as a bare string,
// per spec.md §3's digest-validation requirement; a malformed header is
// tolerated (not every registry sets it) and yields a zero digest.Digest.
func (c *Client) fetchManifestOrIndex(ref imageref.Ref, tagOrDigest, token string) (*v1.Manifest, digest.Digest, error) {
	resp, body, err := c.get(c.manifestURL(ref, tagOrDigest), token)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var probe struct {
		Manifests []v1.Descriptor `json:"manifests"`
	}
	if err := decodeJSON(strings.NewReader(string(body)), &probe); err == nil && len(probe.Manifests) > 0 {
		return nil, "", nil
	}

	var manifest v1.Manifest
	if err := decodeJSON(strings.NewReader(string(body)), &manifest); err != nil {
		return nil, "", fmt.Errorf("%w: decoding manifest: %w", ErrRegistry, err)
	}

	var d digest.Digest
	if raw := resp.Header.Get("Docker-Content-Digest"); raw != "" {
		if parsed, err := digest.Parse(raw); err == nil {
			d = parsed
		} else {
			slog.Warn("registry: ignoring malformed Docker-Content-Digest header", "value", raw, "error", err)
		}
	}
	return &manifest, d, nil
}

func (c *Client) fetchIndex(ref imageref.Ref, tagOrDigest, token string) (*v1.Index, error) {
	resp, body, err := c.get(c.manifestURL(ref, tagOrDigest), token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var index v1.Index
	if err := decodeJSON(strings.NewReader(string(body)), &index); err != nil {
		return nil, fmt.Errorf("%w: decoding manifest index: %w", ErrRegistry, err)
	}
	return &index, nil
}

// selectPlatform picks the manifest descriptor matching (os=linux,
// arch=runtime.GOARCH) with amd64≡x86_64 / arm64≡aarch64 normalization. If
// no entry matches, it falls back to the first entry and logs a warning.
func selectPlatform(index *v1.Index) digest.Digest {
	want := normalizeArch(runtime.GOARCH)

	for _, m := range index.Manifests {
		if m.Platform == nil {
			continue
		}
		if m.Platform.OS == "linux" && normalizeArch(m.Platform.Architecture) == want {
			return m.Digest
		}
	}

	if len(index.Manifests) == 0 {
		return ""
	}
	slog.Warn("registry: no manifest matched this platform, falling back to first entry",
		"want_arch", want, "fallback_digest", index.Manifests[0].Digest.String())
	return index.Manifests[0].Digest
}

func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Blob streams the blob identified by dgst. The caller must close the
// returned ReadCloser.
func (c *Client) Blob(ref imageref.Ref, dgst digest.Digest, token string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, c.blobURL(ref, dgst), nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: blob request: %w", ErrRegistry, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: blob endpoint returned %d", ErrRegistry, resp.StatusCode)
	}
	return resp.Body, nil
}

// get performs an authenticated GET and returns the raw response body
// alongside the still-open response (for header access), erroring on any
// non-200 status.
func (c *Client) get(url, token string) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", acceptHeaders)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: request to %s: %w", ErrRegistry, url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("%w: %s returned %d", ErrRegistry, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("%w: reading response body: %w", ErrRegistry, err)
	}
	resp.Body.Close()

	// Re-open the body as a fresh reader-backed response so callers can
	// still inspect headers after this function returns.
	resp.Body = io.NopCloser(strings.NewReader(string(body)))
	return resp, body, nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
