// Package avatarsvc stores profile pictures and returns the URL they are served from.
package avatarsvc

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

const MaxSize = 2 << 20 // 2 MiB

var (
	ErrTooLarge    = errors.New("a imagem deve ter no máximo 2 MiB")
	ErrUnsupported = errors.New("formato de imagem não suportado (use PNG, JPEG ou WebP)")

	extensions = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
	}
)

// Store saves avatar images.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewStore returns the backend selected by conf.Storage.Backend.
func NewStore(conf *core.Config) (Store, error) {
	switch conf.Storage.Backend {
	case "s3":
		return NewS3Store(conf.Storage)
	case "local", "":
		return NewLocalStore(conf.Storage)
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}

// Key returns the storage key of a user's avatar, validating the upload first.
func Key(userID, contentType string, size int64) (string, error) {
	if size > MaxSize {
		return "", ErrTooLarge
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := extensions[mediaType]
	if !ok {
		return "", ErrUnsupported
	}
	return "avatars/" + userID + ext, nil
}

// ContentType normalises a validated content type.
func ContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
}

func publicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
