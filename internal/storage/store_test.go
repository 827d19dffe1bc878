package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/config"
)

func TestFSStorePutGetStat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	loc, err := store.Put(ctx, "reports/q1.html", []byte("<html></html>"), Metadata{ContentType: "text/html", Checksum: "abc"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "reports", "q1.html"), loc)

	data, err := store.Get(ctx, "reports/q1.html")
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(data))

	meta, err := store.Stat(ctx, "reports/q1.html")
	require.NoError(t, err)
	require.Equal(t, int64(13), meta.Size)
	require.Equal(t, "text/html", meta.ContentType)
	require.False(t, meta.CreatedAt.IsZero())

	info, err := os.Stat(loc)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFSStoreMissingAndDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "nope.pdf")
	require.True(t, IsNotFound(err))

	ok, err := store.Exists(ctx, "nope.pdf")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Put(ctx, "a.md", []byte("# a"), Metadata{})
	require.NoError(t, err)
	ok, err = store.Exists(ctx, "a.md")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a.md"))
	require.NoError(t, store.Delete(ctx, "a.md"))
	ok, err = store.Exists(ctx, "a.md")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoresRejectEscapingNames(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for _, name := range []string{"", "/etc/passwd", "../out.html", "a/../../b"} {
		_, err := fs.Put(ctx, name, []byte("x"), Metadata{})
		require.Error(t, err, name)
		_, err = NewMemoryStore().Put(ctx, name, []byte("x"), Metadata{})
		require.Error(t, err, name)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	loc, err := m.Put(ctx, "x/report.tex", []byte("tex"), Metadata{Checksum: "c"})
	require.NoError(t, err)
	require.Equal(t, "mem://x/report.tex", loc)

	data, err := m.Get(ctx, "x/report.tex")
	require.NoError(t, err)
	require.Equal(t, "tex", string(data))

	meta, ok := m.Metadata("x/report.tex")
	require.True(t, ok)
	require.Equal(t, int64(3), meta.Size)
	require.Equal(t, 1, m.Len())
	require.Equal(t, 1, m.Calls().Put)
}

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	if in.ContentType != nil {
		m.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "docs", "runs")
	ctx := context.Background()

	loc, err := store.Put(ctx, "r1/report.pdf", []byte("%PDF"), Metadata{ContentType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, "s3://docs/runs/r1/report.pdf", loc)
	require.Equal(t, "application/pdf", mock.types["runs/r1/report.pdf"])

	data, err := store.Get(ctx, "r1/report.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data))

	ok, err := store.Exists(ctx, "r1/report.pdf")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "r1/report.pdf"))
	_, err = store.Get(ctx, "r1/report.pdf")
	require.True(t, IsNotFound(err))
	ok, err = store.Exists(ctx, "r1/report.pdf")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(config.StoreConfig{Kind: "local"}, dir)
	require.NoError(t, err)
	require.IsType(t, &FSStore{}, s)

	s, err = Open(config.StoreConfig{Kind: "memory"}, dir)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StoreConfig{Kind: "s3", Bucket: "b", Region: "eu-west-1", Endpoint: "http://localhost:9000"}, dir)
	require.NoError(t, err)
	require.IsType(t, &S3Store{}, s)

	_, err = Open(config.StoreConfig{Kind: "s3"}, dir)
	require.Error(t, err)
	_, err = Open(config.StoreConfig{Kind: "ftp"}, dir)
	require.Error(t, err)
}
