package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/marketbook/internal/model"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    int
	// err is returned by every Put after the first okPuts succeed.
	err    error
	okPuts int
}

func (m *memoryStore) Put(_ context.Context, obj Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.err != nil && m.puts > m.okPuts {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string]Object{}
	}
	m.objects[obj.Key] = obj
	return "mem://" + obj.Key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func file(name, contentType string, data []byte) File {
	return File{Filename: name, ContentType: contentType, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func TestUploadResizesImagesAndKeepsVideos(t *testing.T) {
	store := &memoryStore{}
	u := NewUploader(store, 0, 0)

	video := []byte("not really a video")
	files, err := u.Upload(context.Background(), []File{
		file("Photo.PNG", "image/png", pngBytes(t, 1600, 1200)),
		file("clip.mp4", "video/mp4; codecs=avc1", video),
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, model.MediaImage, files[0].Kind)
	assert.Equal(t, "Photo.PNG", files[0].Filename)
	assert.True(t, strings.HasPrefix(files[0].URL, "mem://items/"))
	assert.True(t, strings.HasSuffix(files[0].URL, ".png"))

	key := strings.TrimPrefix(files[0].URL, "mem://")
	cfg, _, err := image.DecodeConfig(bytes.NewReader(store.objects[key].Data))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, int64(len(store.objects[key].Data)), files[0].Size)

	assert.Equal(t, model.MediaVideo, files[1].Kind)
	assert.Equal(t, int64(len(video)), files[1].Size)
	key = strings.TrimPrefix(files[1].URL, "mem://")
	assert.Equal(t, "video/mp4", store.objects[key].ContentType)
}

func TestValidateRejectsBadUploads(t *testing.T) {
	u := NewUploader(&memoryStore{}, 2, 10)

	tests := []struct {
		name  string
		files []File
	}{
		{"too many", []File{file("a.png", "image/png", nil), file("b.png", "image/png", nil), file("c.png", "image/png", nil)}},
		{"wrong type", []File{file("doc.pdf", "application/pdf", []byte("%PDF"))}},
		{"too large", []File{file("clip.webm", "video/webm", make([]byte, 11))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := u.Validate(tt.files)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestUploadStopsOnStoreError(t *testing.T) {
	u := NewUploader(&memoryStore{err: errors.New("bucket gone")}, 0, 0)
	_, err := u.Upload(context.Background(), []File{file("clip.mp4", "video/mp4", []byte("x"))})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrValidation)
}

func TestUploadRemovesStoredFilesWhenALaterFileFails(t *testing.T) {
	store := &memoryStore{err: errors.New("bucket gone"), okPuts: 1}
	u := NewUploader(store, 0, 0)

	_, err := u.Upload(context.Background(), []File{
		file("a.mp4", "video/mp4", []byte("a")),
		file("b.mp4", "video/mp4", []byte("b")),
	})
	require.Error(t, err)
	assert.Equal(t, 2, store.puts)
	assert.Empty(t, store.objects)
}

func TestDiscard(t *testing.T) {
	store := &memoryStore{}
	u := NewUploader(store, 0, 0)

	files, err := u.Upload(context.Background(), []File{
		file("a.mp4", "video/mp4", []byte("a")),
		file("b.webm", "video/webm", []byte("b")),
	})
	require.NoError(t, err)
	require.Len(t, store.objects, 2)

	require.NoError(t, u.Discard(context.Background(), files))
	assert.Empty(t, store.objects)

	err = u.Discard(context.Background(), []model.MediaFile{{URL: "https://elsewhere.example/x.png"}})
	assert.Error(t, err)
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	u := NewUploader(&memoryStore{}, 0, 0)
	_, err := u.Upload(context.Background(), []File{file("a.jpg", "image/jpeg", []byte("garbage"))})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLocalStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalStore(dir, "/media/")
	require.NoError(t, err)

	url, err := s.Put(context.Background(), Object{Key: "items/abc.txt", Data: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "/media/items/abc.txt", url)

	data, err := os.ReadFile(filepath.Join(dir, "items", "abc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/media")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), Object{Key: "items/abc.txt", Data: []byte("hello")})
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "items/abc.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "items", "abc.txt"))
	assert.NoError(t, s.Delete(context.Background(), "items/abc.txt"), "missing key")
}

func TestLocalStoreStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "media"), "/media")
	require.NoError(t, err)

	url, err := s.Put(context.Background(), Object{Key: "../../escape.txt", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "/media/escape.txt", url)
	assert.FileExists(t, filepath.Join(dir, "media", "escape.txt"))
}

type fakeS3 struct {
	input   *s3.PutObjectInput
	body    []byte
	deleted *s3.DeleteObjectInput
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = in
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(in.Body); err != nil {
		return nil, err
	}
	f.body = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	api := &fakeS3{}
	s := newS3Store(api, "market", "https://cdn.example.com/")

	url, err := s.Put(context.Background(), Object{Key: "items/k.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/items/k.png", url)
	assert.Equal(t, "market", *api.input.Bucket)
	assert.Equal(t, "items/k.png", *api.input.Key)
	assert.Equal(t, "image/png", *api.input.ContentType)
	assert.Equal(t, int64(3), *api.input.ContentLength)
	assert.Equal(t, "png", string(api.body))
}

func TestS3StoreDelete(t *testing.T) {
	api := &fakeS3{}
	s := newS3Store(api, "market", "https://cdn.example.com")

	require.NoError(t, s.Delete(context.Background(), "items/k.png"))
	require.NotNil(t, api.deleted)
	assert.Equal(t, "market", *api.deleted.Bucket)
	assert.Equal(t, "items/k.png", *api.deleted.Key)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)
	_, err = NewS3Store(context.Background(), S3Config{Bucket: "b"})
	assert.Error(t, err)
}
