package bodystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// FileStore reads bodies from files under a root directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (f *FileStore) Body(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" || filepath.IsAbs(filename) || !filepath.IsLocal(filename) {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 0, "body file name %q escapes the article directory", filename)
	}
	data, err := os.ReadFile(filepath.Join(f.root, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperrors.Newf(apperrors.ErrArticleNotFound, 0, "body %s", filename)
	}
	if err != nil {
		return "", fmt.Errorf("reading body %s: %w", filename, err)
	}
	return strings.TrimSpace(string(data)), nil
}
