// Package media validates and stores files uploaded with items.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/marketbook/internal/imaging"
	"github.com/erazemk/marketbook/internal/model"
)

// Upload limits.
const (
	DefaultMaxFiles = 5
	DefaultMaxSize  = 50 << 20
)

// allowedTypes maps accepted MIME types to the media kind they produce.
var allowedTypes = map[string]string{
	"image/jpeg":      model.MediaImage,
	"image/jpg":       model.MediaImage,
	"image/png":       model.MediaImage,
	"image/gif":       model.MediaImage,
	"video/mp4":       model.MediaVideo,
	"video/quicktime": model.MediaVideo,
	"video/x-msvideo": model.MediaVideo,
	"video/webm":      model.MediaVideo,
}

// Object is a file ready to be written to a Store.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store persists objects and returns the URL they are reachable at.
// Deleting a missing key is not an error.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, key string) error
}

// File is one uploaded file as received from the client.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader checks uploads against the allow-list and size limits, shrinks
// photos and writes everything to a Store.
type Uploader struct {
	store     Store
	maxFiles  int
	maxSize   int64
	maxWidth  int
	maxHeight int
}

// NewUploader creates an Uploader. Zero limits use the defaults.
func NewUploader(store Store, maxFiles int, maxSize int64) *Uploader {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Uploader{
		store:     store,
		maxFiles:  maxFiles,
		maxSize:   maxSize,
		maxWidth:  imaging.MaxWidth,
		maxHeight: imaging.MaxHeight,
	}
}

// MaxFiles is the number of files accepted per request.
func (u *Uploader) MaxFiles() int { return u.maxFiles }

// MaxSize is the largest accepted file in bytes.
func (u *Uploader) MaxSize() int64 { return u.maxSize }

// Validate checks every file before anything is stored.
func (u *Uploader) Validate(files []File) error {
	if len(files) > u.maxFiles {
		return model.NewValidationError("mediaFiles", fmt.Sprintf("at most %d files may be uploaded", u.maxFiles))
	}
	for _, f := range files {
		if _, ok := allowedTypes[normalizeType(f.ContentType)]; !ok {
			return model.NewValidationError("mediaFiles", fmt.Sprintf("%s: invalid file type, only images and videos are allowed", f.Filename))
		}
		if f.Size > u.maxSize {
			return model.NewValidationError("mediaFiles", fmt.Sprintf("%s: file exceeds %d MB", f.Filename, u.maxSize>>20))
		}
	}
	return nil
}

// Upload validates and stores files, returning their metadata in order.
func (u *Uploader) Upload(ctx context.Context, files []File) ([]model.MediaFile, error) {
	if err := u.Validate(files); err != nil {
		return nil, err
	}

	out := make([]model.MediaFile, 0, len(files))
	for _, f := range files {
		mf, err := u.put(ctx, f)
		if err != nil {
			if derr := u.Discard(context.WithoutCancel(ctx), out); derr != nil {
				err = errors.Join(err, derr)
			}
			return nil, err
		}
		out = append(out, mf)
	}
	return out, nil
}

// Discard removes files stored by Upload, for requests that failed after the
// upload. Every file is attempted; the errors are joined.
func (u *Uploader) Discard(ctx context.Context, files []model.MediaFile) error {
	var errs []error
	for _, f := range files {
		key, ok := keyFromURL(f.URL)
		if !ok {
			errs = append(errs, fmt.Errorf("no object key in %q", f.URL))
			continue
		}
		if err := u.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (u *Uploader) put(ctx context.Context, f File) (model.MediaFile, error) {
	contentType := normalizeType(f.ContentType)

	data, err := io.ReadAll(io.LimitReader(f.Body, u.maxSize+1))
	if err != nil {
		return model.MediaFile{}, fmt.Errorf("reading %s: %w", f.Filename, err)
	}
	if int64(len(data)) > u.maxSize {
		return model.MediaFile{}, model.NewValidationError("mediaFiles", fmt.Sprintf("%s: file exceeds %d MB", f.Filename, u.maxSize>>20))
	}

	if imaging.Resizable(contentType) {
		resized, err := imaging.Fit(data, u.maxWidth, u.maxHeight)
		if err != nil {
			return model.MediaFile{}, model.NewValidationError("mediaFiles", fmt.Sprintf("%s: not a valid image", f.Filename))
		}
		data = resized
	}

	url, err := u.store.Put(ctx, Object{
		Key:         objectKey(f.Filename),
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return model.MediaFile{}, fmt.Errorf("storing %s: %w", f.Filename, err)
	}

	return model.MediaFile{
		URL:      url,
		Kind:     allowedTypes[contentType],
		Filename: f.Filename,
		Size:     int64(len(data)),
	}, nil
}

func normalizeType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

const keyPrefix = "items/"

// objectKey builds a unique key that keeps the original extension.
func objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return keyPrefix + uuid.NewString() + ext
}

// keyFromURL recovers the object key from a URL returned by Store.Put.
func keyFromURL(url string) (string, bool) {
	i := strings.LastIndex(url, "/"+keyPrefix)
	if i < 0 {
		return "", false
	}
	return url[i+1:], true
}

func reader(data []byte) io.ReadSeeker { return bytes.NewReader(data) }
