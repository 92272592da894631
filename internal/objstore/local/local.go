// Package local stores objects on the local filesystem and serves them
// through signed, time-limited URLs.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/claimwildcats/internal/objstore"
)

const audienceDownload = "cwc-storage"

// DefaultURLTTL is how long a download URL stays valid.
const DefaultURLTTL = time.Hour

// Store keeps objects under basePath/<bucket>/<path>.
type Store struct {
	basePath string
	secret   []byte
	baseURL  string
	ttl      time.Duration
}

// New creates a store rooted at basePath. Download URLs are signed with
// secret and prefixed with baseURL (may be empty for same-origin URLs).
func New(basePath, secret, baseURL string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &Store{
		basePath: basePath,
		secret:   []byte(secret),
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttl:      ttl,
	}, nil
}

// Put writes the object, replacing any existing one.
func (s *Store) Put(ctx context.Context, ref objstore.Ref, contentType string, r io.Reader) error {
	if _, ok := objstore.PrincipalFrom(ctx); !ok {
		return fmt.Errorf("writing %s: %w", ref, objstore.ErrUnauthorized)
	}
	filePath, err := s.safeJoin(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, ref objstore.Ref) error {
	if _, ok := objstore.PrincipalFrom(ctx); !ok {
		return fmt.Errorf("deleting %s: %w", ref, objstore.ErrUnauthorized)
	}
	filePath, err := s.safeJoin(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("deleting %s: %w", ref, objstore.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

type downloadClaims struct {
	jwt.RegisteredClaims
}

// DownloadURL returns a signed URL for an existing object.
func (s *Store) DownloadURL(ctx context.Context, ref objstore.Ref) (string, error) {
	filePath, err := s.safeJoin(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolving %s: %w", ref, objstore.ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{jwt.RegisteredClaims{
		Subject:   ref.String(),
		Audience:  jwt.ClaimStrings{audienceDownload},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing download url: %w", err)
	}

	return s.baseURL + "/storage/" + url.PathEscape(ref.Bucket) + "/" + escapePath(ref.Path) +
		"?token=" + url.QueryEscape(signed), nil
}

// Open returns the object addressed by a download URL after checking its
// token. The caller closes the returned file.
func (s *Store) Open(bucket, path, token string) (*os.File, string, error) {
	ref := objstore.Ref{Bucket: bucket, Path: strings.Trim(path, "/")}

	parsed, err := jwt.ParseWithClaims(token, &downloadClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience(audienceDownload), jwt.WithExpirationRequired())
	if err != nil {
		return nil, "", fmt.Errorf("checking download token: %w", objstore.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*downloadClaims)
	if !ok || claims.Subject != ref.String() {
		return nil, "", fmt.Errorf("download token does not match %s: %w", ref, objstore.ErrUnauthorized)
	}

	filePath, err := s.safeJoin(ref)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("opening %s: %w", ref, objstore.ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, extToMimeType(filePath), nil
}

// safeJoin resolves ref relative to basePath and rejects directory traversal.
func (s *Store) safeJoin(ref objstore.Ref) (string, error) {
	if ref.Bucket == "" || ref.Path == "" || strings.ContainsAny(ref.Bucket, `/\`) || ref.Bucket == ".." {
		return "", fmt.Errorf("invalid object reference: %s", ref)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, ref.Bucket, filepath.FromSlash(ref.Path)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, filepath.Join(absBase, ref.Bucket)+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func extToMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
