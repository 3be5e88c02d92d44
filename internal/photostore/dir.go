package photostore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Dir stores photos under a local directory served at a public base URL
type Dir struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewDir creates a directory-backed photo store
func NewDir(root, baseURL string, logger *zap.Logger) *Dir {
	return &Dir{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Upload writes data to root/name and returns its public URL
func (d *Dir) Upload(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Clean("/" + name)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid photo name %q", name)
	}

	target := filepath.Join(d.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store photo: %w", err)
	}

	u, err := url.JoinPath(d.baseURL, strings.Split(clean, "/")...)
	if err != nil {
		return "", fmt.Errorf("failed to build photo url: %w", err)
	}

	d.logger.Debug("photo stored", zap.String("path", target), zap.Int("bytes", len(data)))
	return u, nil
}
