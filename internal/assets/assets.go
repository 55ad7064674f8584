// Package assets stores uploaded binary files such as character portraits.
package assets

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnsupportedType is returned for uploads whose extension is not an accepted image format.
var ErrUnsupportedType = errors.New("unsupported image type")

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Store persists an object under key and returns the URL clients should use to fetch it.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// CharacterImageKey builds a fresh object key for a character portrait and
// returns it together with the content type implied by the file name.
func CharacterImageKey(characterID, filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := imageTypes[ext]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return fmt.Sprintf("characters/%s/%s%s", characterID, uuid.NewString(), ext), contentType, nil
}
