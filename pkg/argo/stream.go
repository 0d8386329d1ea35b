package argo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ArtifactFile is one resolved artifact. Body streams the file content and
// must be fully drained or closed before the next call to Next, otherwise
// the underlying connection leaks.
type ArtifactFile struct {
	Path string
	Body io.ReadCloser
}

// ArtifactStream lazily resolves artifact references into individual files.
// Server-side directories are expanded by walking their HTML listings, so
// one reference may yield many files. The stream is single-pass and not
// restartable; no network request is made until Next is called.
type ArtifactStream struct {
	client  *Client
	pending []streamEntry
	closed  bool
}

type streamEntry struct {
	url  string
	path string
}

// StreamArtifacts returns a stream over the given artifact references. The
// retrieval URL for each reference is derived from the namespace, workflow
// name, node ID, and artifact name.
func (c *Client) StreamArtifacts(namespace, workflowName string, refs []ArtifactRef) *ArtifactStream {
	// The workflow-service artifact endpoint is used directly: the typed
	// API route gets the discriminator wrong for archived workflows.
	pending := make([]streamEntry, 0, len(refs))
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		pending = append(pending, streamEntry{
			url: fmt.Sprintf("%s/artifact-files/%s/workflows/%s/%s/outputs/%s",
				c.baseURL,
				url.PathEscape(namespace),
				url.PathEscape(workflowName),
				url.PathEscape(ref.NodeID),
				url.PathEscape(ref.Name)),
			path: relativePath(ref.NodeID, ref.Path),
		})
	}

	return &ArtifactStream{client: c, pending: pending}
}

// Next returns the next artifact file, expanding directory listings as it
// goes. It returns io.EOF once the stream is exhausted. Any transport
// failure aborts the whole stream: a partial artifact set must never be
// mistaken for a complete one.
func (s *ArtifactStream) Next(ctx context.Context) (*ArtifactFile, error) {
	if s.closed {
		return nil, io.EOF
	}

	for len(s.pending) > 0 {
		entry := s.pending[len(s.pending)-1]
		s.pending = s.pending[:len(s.pending)-1]

		file, children, err := s.resolve(ctx, entry)
		if err != nil {
			s.closed = true

			return nil, err
		}

		if file != nil {
			return file, nil
		}

		for i := len(children) - 1; i >= 0; i-- {
			s.pending = append(s.pending, children[i])
		}
	}

	return nil, io.EOF
}

// Close aborts the stream. Bodies already handed out by Next remain the
// caller's responsibility.
func (s *ArtifactStream) Close() error {
	s.closed = true
	s.pending = nil

	return nil
}

// resolve decides whether a URL is a file or a directory listing and
// returns exactly one of: the streaming file, or the listing's children.
//
// A HEAD request would be the natural probe, but the engine handles HEAD
// on large artifacts slowly and sometimes incorrectly. Instead a streaming
// GET is opened and only its headers inspected: a Content-Disposition
// header marks a file. The probe connection is closed before the real
// download is opened.
func (s *ArtifactStream) resolve(ctx context.Context, entry streamEntry) (*ArtifactFile, []streamEntry, error) {
	probe, err := s.open(ctx, entry.url)
	if err != nil {
		return nil, nil, err
	}

	if probe.Header.Get("Content-Disposition") != "" {
		err = probe.Body.Close()
		if err != nil {
			return nil, nil, &TransportError{Op: "GET", URL: entry.url, Err: err}
		}

		s.client.logger.Debug("streaming artifact file", "url", entry.url, "path", entry.path)

		download, err := s.open(ctx, entry.url)
		if err != nil {
			return nil, nil, err
		}

		return &ArtifactFile{Path: entry.path, Body: download.Body}, nil, nil
	}

	s.client.logger.Debug("expanding artifact directory", "url", entry.url)

	defer func() {
		if closeErr := probe.Body.Close(); closeErr != nil {
			s.client.logger.Error("failed to close directory listing body", "error", closeErr)
		}
	}()

	links, err := parseDirectoryListing(probe.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse directory listing at %s: %w", entry.url, err)
	}

	base, err := url.Parse(strings.TrimRight(entry.url, "/") + "/")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse directory URL %s: %w", entry.url, err)
	}

	children := make([]streamEntry, 0, len(links))

	for _, link := range links {
		if link.href == ".." || link.href == "../" {
			continue
		}

		ref, err := url.Parse(link.href)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve listing link %q: %w", link.href, err)
		}

		segment := link.text
		if segment == "" {
			segment = link.href
		}

		children = append(children, streamEntry{
			url:  base.ResolveReference(ref).String(),
			path: path.Join(entry.path, segment),
		})
	}

	return nil, children, nil
}

func (s *ArtifactStream) open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: rawURL, Err: err}
	}

	s.client.authorize(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		if closeErr := resp.Body.Close(); closeErr != nil {
			s.client.logger.Error("failed to close response body", "error", closeErr)
		}

		return nil, &TransportError{
			Op:     "GET",
			URL:    rawURL,
			Status: resp.StatusCode,
			Err:    apiError(detail),
		}
	}

	return resp, nil
}

type directoryLink struct {
	href string
	text string
}

// parseDirectoryListing extracts the anchors of an HTML directory page.
func parseDirectoryListing(r io.Reader) ([]directoryLink, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	links := make([]directoryLink, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			link := directoryLink{text: strings.TrimSpace(anchorText(n))}

			for _, attr := range n.Attr {
				if attr.Key == "href" {
					link.href = attr.Val

					break
				}
			}

			if link.href != "" {
				links = append(links, link)
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(root)

	return links, nil
}

func anchorText(n *html.Node) string {
	var sb strings.Builder

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}

	return sb.String()
}
