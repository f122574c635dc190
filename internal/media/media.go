// Package media resizes uploaded profile images and stores them as blobs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/anonto42/nano-midea/socialsync/internal/blob"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

const (
	JPEGQuality = 85
	// MaxUploadBytes bounds the raw upload before decoding.
	MaxUploadBytes = 10 << 20
)

// Kind describes one of the user image slots.
type Kind struct {
	Name      string
	MaxWidth  int
	MaxHeight int
	URLField  string
	RefField  string
}

var (
	Avatar = Kind{Name: "avatar", MaxWidth: 400, MaxHeight: 400, URLField: models.FieldImageURL, RefField: models.FieldImageURLRef}
	Header = Kind{Name: "header", MaxWidth: 500, MaxHeight: 800, URLField: models.FieldHeaderURL, RefField: models.FieldHeaderURLRef}
)

type Uploader struct {
	blobs  blob.Store
	logger *slog.Logger
}

func NewUploader(blobs blob.Store, logger *slog.Logger) *Uploader {
	return &Uploader{blobs: blobs, logger: logger}
}

// Upload validates a jpeg, shrinks it to fit kind and stores it under a fresh
// object name. It returns the user fields pointing at the new blob.
func (u *Uploader) Upload(ctx context.Context, kind Kind, data []byte) (store.Fields, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("no file uploaded")
	}
	if len(data) > MaxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("file too large (max %dMB)", MaxUploadBytes>>20))
	}
	if ct := http.DetectContentType(data); ct != "image/jpeg" {
		return nil, models.NewValidationError("wrong file type submitted")
	}
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError("invalid image file")
	}
	encoded, err := encodeJPEG(Resize(src, kind.MaxWidth, kind.MaxHeight))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind.Name, err)
	}

	object := fmt.Sprintf("%s-%s.jpg", kind.Name, uuid.NewString())
	url, ref, err := u.blobs.Upload(ctx, object, "image/jpeg", encoded)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind.Name, err)
	}
	return store.Fields{kind.URLField: url, kind.RefField: ref}, nil
}

// Discard removes a blob that was uploaded but never referenced, e.g. when
// the user update that should have pointed at it failed.
func (u *Uploader) Discard(ctx context.Context, fields store.Fields, kind Kind) {
	ref, _ := fields[kind.RefField].(string)
	if ref == "" {
		return
	}
	if err := u.blobs.Delete(ctx, ref); err != nil {
		u.logger.WarnContext(ctx, "failed to discard unreferenced upload",
			slog.String("ref", ref),
			slog.String("error", err.Error()))
	}
}

// Resize scales src down to fit maxWidth x maxHeight, keeping its aspect
// ratio. Smaller images are returned unchanged.
func Resize(src image.Image, maxWidth, maxHeight int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}
	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
