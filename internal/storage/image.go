package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidImage is returned by Validate for uploads that break the image policy
var ErrInvalidImage = errors.New("invalid image")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Upload is a staged file that has not been committed yet
type Upload struct {
	OriginalName string
	Size         int64
	ContentType  string
	TempPath     string
}

// ImageManager moves uploaded images from a temp area into permanent storage
type ImageManager struct {
	store        *LocalStore
	tempDir      string
	maxBytes     int64
	publicPrefix string
}

func NewImageManager(store *LocalStore, tempDir string, maxBytes int64, publicPrefix string) (*ImageManager, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &ImageManager{
		store:        store,
		tempDir:      tempDir,
		maxBytes:     maxBytes,
		publicPrefix: publicPrefix,
	}, nil
}

// Stage copies a multipart file into the temp area. At most maxBytes+1 bytes
// are copied so Validate can reject oversized files.
func (m *ImageManager) Stage(fh *multipart.FileHeader) (*Upload, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(m.tempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(src, m.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	return &Upload{
		OriginalName: fh.Filename,
		Size:         n,
		ContentType:  fh.Header.Get("Content-Type"),
		TempPath:     tmp.Name(),
	}, nil
}

// Validate checks size, extension, declared type and sniffed content
func (m *ImageManager) Validate(u *Upload) error {
	if u.Size > m.maxBytes {
		return fmt.Errorf("%w: file size too large, maximum size is %dMB", ErrInvalidImage, m.maxBytes>>20)
	}
	if u.Size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidImage)
	}

	ext := strings.ToLower(filepath.Ext(u.OriginalName))
	if !allowedExt[ext] {
		return fmt.Errorf("%w: only JPEG, PNG, GIF, and WebP images are allowed", ErrInvalidImage)
	}
	if u.ContentType != "" && !allowedMime[strings.ToLower(u.ContentType)] {
		return fmt.Errorf("%w: only JPEG, PNG, GIF, and WebP images are allowed", ErrInvalidImage)
	}

	head, err := readHead(u.TempPath)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	detected := http.DetectContentType(head)
	if !allowedMime[detected] {
		return fmt.Errorf("%w: file content is not a supported image", ErrInvalidImage)
	}
	return nil
}

// Commit stores the upload under a generated name and returns its public path
func (m *ImageManager) Commit(ctx context.Context, u *Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(u.OriginalName))
	name := uuid.NewString() + ext
	if err := m.store.Store(ctx, u.TempPath, name); err != nil {
		return "", err
	}
	return m.publicPrefix + name, nil
}

// Discard removes the staged temp file, if still present
func (m *ImageManager) Discard(u *Upload) {
	if u == nil || u.TempPath == "" {
		return
	}
	os.Remove(u.TempPath)
}

// Remove deletes a committed image by its public path. Missing files are ignored.
func (m *ImageManager) Remove(ctx context.Context, publicPath string) error {
	return m.store.Delete(ctx, m.NameOf(publicPath))
}

// NameOf returns the stored file name for a public path
func (m *ImageManager) NameOf(publicPath string) string {
	if name, ok := strings.CutPrefix(publicPath, m.publicPrefix); ok {
		return name
	}
	return path.Base(publicPath)
}

// Exists reports whether a stored image with this file name is present
func (m *ImageManager) Exists(name string) (bool, error) {
	return m.store.Exists(name)
}

// Open returns a read handle for a stored image
func (m *ImageManager) Open(name string) (*os.File, fs.FileInfo, error) {
	return m.store.Open(name)
}

func readHead(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}
