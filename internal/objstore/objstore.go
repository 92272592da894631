// Package objstore addresses stored attachments by storage://bucket/path
// references.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Scheme is the canonical reference scheme. AliasScheme is accepted on input.
const (
	Scheme      = "storage"
	AliasScheme = "gs"
)

// CodeUnauthorized is the error code carried by ErrUnauthorized.
const CodeUnauthorized = "storage/unauthorized"

var (
	// ErrUnauthorized is returned when the caller may not touch the object.
	ErrUnauthorized = errors.New(CodeUnauthorized + ": not authorized to access the object")
	// ErrNotFound is returned for missing objects.
	ErrNotFound = errors.New("storage/object-not-found: object does not exist")
)

// Ref addresses one object.
type Ref struct {
	Bucket string
	Path   string
}

func (r Ref) String() string {
	return Scheme + "://" + r.Bucket + "/" + r.Path
}

// IsRef reports whether s looks like a storage reference rather than a
// directly usable URL.
func IsRef(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, Scheme+"://") || strings.HasPrefix(s, AliasScheme+"://")
}

// ParseRef parses storage://bucket/path (or gs://bucket/path).
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Ref{}, fmt.Errorf("not a storage reference: %q", s)
	}
	scheme = strings.ToLower(scheme)
	if scheme != Scheme && scheme != AliasScheme {
		return Ref{}, fmt.Errorf("unsupported storage scheme: %q", scheme)
	}
	bucket, path, _ := strings.Cut(rest, "/")
	path = strings.Trim(path, "/")
	if bucket == "" || path == "" {
		return Ref{}, fmt.Errorf("incomplete storage reference: %q", s)
	}
	return Ref{Bucket: bucket, Path: path}, nil
}

// Signer turns a reference into a URL a browser can load.
type Signer interface {
	DownloadURL(ctx context.Context, ref Ref) (string, error)
}

// Store writes and deletes objects. Writes and deletes require a principal
// in the context.
type Store interface {
	Signer
	Put(ctx context.Context, ref Ref, contentType string, r io.Reader) error
	Delete(ctx context.Context, ref Ref) error
}

type principalKey struct{}

// WithPrincipal marks ctx as acting for the given user.
func WithPrincipal(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// PrincipalFrom returns the user set by WithPrincipal.
func PrincipalFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok && id != ""
}
