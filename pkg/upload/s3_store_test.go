package upload

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts++
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestStoreDeduplicates(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, S3Config{Bucket: "docs", Region: "eu-central-1", Prefix: "uploads/"})

	url, err := store.Store(context.Background(), pngHeader, "application/octet-stream")
	require.NoError(t, err)
	assert.Regexp(t, `^https://docs\.s3\.eu-central-1\.amazonaws\.com/uploads/[0-9a-f]{64}\.png$`, url)

	again, err := store.Store(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, url, again)
	assert.Equal(t, 1, fake.puts)
	for _, ct := range fake.types {
		assert.Equal(t, "image/png", ct)
	}
}

func TestStoreCustomEndpointURL(t *testing.T) {
	store := newS3Store(newFakeS3(), S3Config{Bucket: "docs", Endpoint: "http://minio:9000/"})
	url, err := store.Store(context.Background(), []byte("%PDF-1.4 test"), "")
	require.NoError(t, err)
	assert.Regexp(t, `^http://minio:9000/docs/[0-9a-f]{64}\.pdf$`, url)
}

func TestDetectType(t *testing.T) {
	_, err := DetectType(nil, "")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = DetectType(make([]byte, MaxSize+1), "")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = DetectType([]byte("PK\x03\x04 zip archive"), "application/zip")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	ct, err := DetectType([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), "image/svg+xml")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", ct)
}
