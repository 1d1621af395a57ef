package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"pairchat/utils"
)

var ErrInvalidName = errors.New("storage: invalid file name")

// LocalStore writes images to a directory served under /files/.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// resolve maps a bare file name to a path inside the store directory.
func (s *LocalStore) resolve(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean != filepath.Base(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".") {
		return "", ErrInvalidName
	}

	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(filepath.Join(s.dir, clean))
	if err != nil {
		return "", ErrInvalidName
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	return absPath, nil
}

func (s *LocalStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("local storage: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	return s.baseURL + "/files/" + filepath.Base(path), nil
}

// ServeFile handles GET /files/:filename.
func (s *LocalStore) ServeFile(c *gin.Context) {
	path, err := s.resolve(c.Param("filename"))
	if err != nil {
		utils.BadRequest(c, "invalid filename")
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		utils.NotFound(c, "file not found")
		return
	}
	c.File(path)
}
