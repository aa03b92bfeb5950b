// Package uploads stores user supplied images (product photos, banners,
// payment receipts) under the public root, and only ever deletes files that
// live below its uploads/ directory.
package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/logging"
	"storefront/internal/orders"
)

const MaxImageSize = 5 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image file too large (max 5MB)")
	ErrInvalidEncoding  = errors.New("invalid image encoding")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// SaveImage writes a multipart upload into uploads/<kind>/ and returns the
// path to persist, relative to the public root.
func (s *Store) SaveImage(file *multipart.FileHeader, kind string) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == ".jpeg" {
		extension = ".jpg"
	}
	switch extension {
	case ".jpg", ".png", ".webp":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, extension)
	}
	if file.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	return s.write(kind, extension, in)
}

// Save stores a payment receipt. It implements orders.ReceiptStore.
func (s *Store) Save(_ context.Context, r orders.Receipt) (string, error) {
	if len(r.Data) == 0 {
		return "", ErrInvalidEncoding
	}
	if len(r.Data) > MaxImageSize {
		return "", ErrImageTooLarge
	}

	contentType := r.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(r.Data)
	}
	extension, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	return s.write("receipts", extension, bytes.NewReader(r.Data))
}

func (s *Store) write(kind, extension string, src io.Reader) (string, error) {
	log := logging.New("uploads")

	dir := filepath.Join(s.root, "uploads", kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("create directory failed", "dir", dir, "err", err)
		return "", err
	}

	filename := primitive.NewObjectID().Hex() + extension
	fullPath := filepath.Join(dir, filename)

	out, err := os.Create(fullPath)
	if err != nil {
		log.Error("create file failed", "path", fullPath, "err", err)
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		log.Error("write file failed", "path", fullPath, "err", err)
		_ = os.Remove(fullPath)
		return "", err
	}

	log.Debug("upload saved", "path", fullPath)
	return path.Join("uploads", kind, filename), nil
}

// Read returns the content of a stored upload.
func (s *Store) Read(ref string) ([]byte, error) {
	target, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// Delete removes a stored upload. Missing files and empty refs are not errors.
func (s *Store) Delete(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) resolve(ref string) (string, error) {
	cleanRel := path.Clean("/" + strings.TrimPrefix(strings.TrimSpace(ref), "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")

	if !strings.HasPrefix(cleanRel, "uploads/") {
		return "", fmt.Errorf("refusing non-upload path: %s", ref)
	}

	target := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(cleanRel)))
	if !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("refusing path outside public root: %s", ref)
	}
	return target, nil
}

// DecodeReceipt accepts either a data URL ("data:image/png;base64,...") or a
// bare base64 string.
func DecodeReceipt(raw string) (orders.Receipt, error) {
	raw = strings.TrimSpace(raw)
	var contentType string

	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return orders.Receipt{}, ErrInvalidEncoding
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		raw = payload
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return orders.Receipt{}, ErrInvalidEncoding
		}
	}
	if len(data) == 0 {
		return orders.Receipt{}, ErrInvalidEncoding
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	return orders.Receipt{Data: data, ContentType: contentType}, nil
}

var _ orders.ReceiptStore = (*Store)(nil)
