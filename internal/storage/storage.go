// Package storage holds the attachment blob seam. The service talks to a
// BlobStore interface; the in-tree implementation keeps blobs on local disk
// and hands out short-lived signed download tokens.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidName  = errors.New("invalid stored name")
	ErrBadToken     = errors.New("invalid download token")
)

// BlobStore stores and retrieves attachment blobs by their stored name.
type BlobStore interface {
	Save(ctx context.Context, storedName string, r io.Reader) error
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
}

// LocalStore is a disk-backed BlobStore.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the storage directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the blob under its stored name.
func (s *LocalStore) Save(ctx context.Context, storedName string, r io.Reader) error {
	path, err := s.path(storedName)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// Open returns a reader over the stored blob.
func (s *LocalStore) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	path, err := s.path(storedName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

// path rejects names that would escape the storage directory.
func (s *LocalStore) path(storedName string) (string, error) {
	if storedName == "" || strings.ContainsAny(storedName, "/\\") || strings.Contains(storedName, "..") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, storedName), nil
}

// DownloadSigner issues and verifies expiring download tokens so file links
// can be shared with the browser without re-sending the bearer credential.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewDownloadSigner constructs a signer. ttl bounds how long an issued link
// stays valid.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	return &DownloadSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token bound to one stored name.
func (s *DownloadSigner) Sign(storedName string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   storedName,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the token and returns the stored name it was issued for.
func (s *DownloadSigner) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrBadToken
	}
	return claims.Subject, nil
}
