package avatarsvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

// LocalStore writes avatars under a directory served by the API.
type LocalStore struct {
	basePath string
	baseURL  string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(conf core.StorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(conf.LocalPath, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating storage directory %s", conf.LocalPath)
	}
	return &LocalStore{basePath: conf.LocalPath, baseURL: conf.PublicBaseURL}, nil
}

// fullPath keeps keys inside basePath.
func (s *LocalStore) fullPath(key string) string {
	clean := filepath.Clean("/" + key)
	return filepath.Join(s.basePath, strings.TrimPrefix(clean, "/"))
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fp := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating avatar directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating avatar file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, io.LimitReader(r, MaxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrap(err, "writing avatar")
	}
	if n > MaxSize || (size > 0 && n != size) {
		return "", ErrTooLarge
	}
	if err = os.Rename(tmp.Name(), fp); err != nil {
		return "", errors.Wrap(err, "saving avatar")
	}
	return publicURL(s.baseURL, key), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.fullPath(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting avatar")
	}
	return nil
}

// Dir is the directory the API serves avatars from.
func (s *LocalStore) Dir() string {
	return s.basePath
}
