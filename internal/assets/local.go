package assets

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore writes assets below a directory that the HTTP server exposes under urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload directory")
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "create asset directory")
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrap(err, "create asset")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", errors.Wrap(err, "write asset")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close asset")
	}
	return s.urlPrefix + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete asset")
	}
	return nil
}

// resolve maps key to a path inside dir, rejecting keys that escape it.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", errors.Errorf("invalid asset key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
