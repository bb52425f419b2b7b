// Package media stores uploaded menu images on disk and hands back the URL
// clients load them from.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"restaurant-order-engine/apperror"
)

// MaxImageBytes caps a single upload.
const MaxImageBytes = 5 << 20

var allowedExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

type Store struct {
	dir     string
	baseURL string
	prefix  string
}

// NewStore saves files under dir and builds URLs as baseURL + prefix + name.
func NewStore(dir, baseURL, prefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "/" + strings.Trim(prefix, "/") + "/",
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes r under a unique name derived from filename and returns its
// public URL.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", apperror.Validationf("invalid image type %q", ext)
	}
	base := sanitize(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + base + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxImageBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}
	if n > MaxImageBytes {
		os.Remove(f.Name())
		return "", apperror.Validationf("image exceeds %d bytes", MaxImageBytes)
	}
	return s.baseURL + s.prefix + name, nil
}

// Delete removes the file behind a URL returned by Save. Removing a file that
// is already gone is not an error.
func (s *Store) Delete(url string) error {
	name, ok := strings.CutPrefix(url, s.baseURL+s.prefix)
	if !ok || name == "" || name != filepath.Base(name) {
		return apperror.Validationf("%q is not an uploaded image", url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
