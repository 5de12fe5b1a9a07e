package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// CacheControl selects the caching headers sent with served files.
type CacheControl int

const (
	// CacheDefault sends no caching headers.
	CacheDefault CacheControl = iota

	// CacheNone disables caching.
	CacheNone

	// CacheProduction caches fingerprinted files for a year and other files
	// for an hour with revalidation.
	CacheProduction
)

// Folder serves the files of an fs.FS below a path prefix. Files are sent as
// length-known streams opened after dispatch. Directories are served through
// their index.html.
type Folder struct {
	fsys     fs.FS
	prefix   string
	notFound bool
	cache    CacheControl
	headers  map[string]string
}

// FolderOption configures a Folder.
type FolderOption func(*Folder)

// WithNotFound controls what happens when no file matches: true answers 404,
// false leaves the request to later handlers. Default: true.
func WithNotFound(enabled bool) FolderOption {
	return func(f *Folder) { f.notFound = enabled }
}

// WithCacheControl sets the caching policy.
func WithCacheControl(mode CacheControl) FolderOption {
	return func(f *Folder) { f.cache = mode }
}

// WithFileHeaders adds headers to every served file.
func WithFileHeaders(headers map[string]string) FolderOption {
	return func(f *Folder) { f.headers = headers }
}

// NewFolder returns a Folder serving fsys under prefix.
func NewFolder(fsys fs.FS, prefix string, opts ...FolderOption) *Folder {
	f := &Folder{
		fsys:     fsys,
		prefix:   normalizePrefix(prefix),
		notFound: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HandleRequest implements server.Handler.
func (f *Folder) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	sub, ok := matchPrefix(stripQuery(relativePath), f.prefix)
	if !ok {
		return nil
	}

	if !strings.EqualFold(req.Method(), "GET") {
		req.SetResponse("text/plain", "Method not authorized - use a GET", server.WithStatus(405, "METHOD NOT ALLOWED"))
		return nil
	}

	name, ok := f.resolve(sub)
	if !ok {
		f.missing(req)
		return nil
	}

	opts := []server.ResponseOption{server.WithHeaders(f.fileHeaders(name))}
	req.SetStreamResponse(contentTypeOf(name), func(context.Context) (io.ReadCloser, int64, error) {
		return f.open(name)
	}, opts...)
	return nil
}

// resolve maps a URL path below the prefix to a regular file in fsys.
func (f *Folder) resolve(sub string) (string, bool) {
	rel, ok := cleanRelPath(sub)
	if !ok {
		return "", false
	}
	if rel == "" {
		rel = "."
	}

	info, err := fs.Stat(f.fsys, rel)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		rel = path.Join(rel, "index.html")
		info, err = fs.Stat(f.fsys, rel)
		if err != nil || info.IsDir() {
			return "", false
		}
	}
	return rel, true
}

func (f *Folder) open(name string) (io.ReadCloser, int64, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("handlers: open %s: %w", name, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("handlers: stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, 0, fmt.Errorf("handlers: %s: %w", name, errors.ErrUnsupported)
	}
	return file, info.Size(), nil
}

func (f *Folder) missing(req *server.Request) {
	if !f.notFound {
		return
	}
	req.SetResponse("text/plain", fmt.Sprintf("Unable to find resource at url %s", req.URL()),
		server.WithStatus(404, "NOT FOUND"))
}

func (f *Folder) fileHeaders(name string) server.Header {
	h := make(server.Header)
	switch f.cache {
	case CacheNone:
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	case CacheProduction:
		if isFingerprinted(name) {
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			h.Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
	for k, v := range f.headers {
		h.Set(k, v)
	}
	return h
}

// String identifies the handler in logs.
func (f *Folder) String() string {
	if f.prefix == "" {
		return "folder /"
	}
	return "folder " + f.prefix
}

// contentTypeOf guesses the media type from the file extension.
func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// isFingerprinted reports whether a file name carries a content hash, e.g.
// "app.a1b2c3d4.css".
func isFingerprinted(name string) bool {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return false
	}

	// Hashes are 8+ hex characters before the extension.
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
