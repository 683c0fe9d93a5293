package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putErr    error
	deleteErr error
	listErr   error

	putKey      string
	putBody     string
	contentType string
	deleted     []string
	pages       []*s3.ListObjectsV2Output
	listCalls   int
	listPrefix  string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.putKey = aws.ToString(in.Key)
	f.putBody = string(b)
	f.contentType = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listPrefix = aws.ToString(in.Prefix)
	page := f.pages[f.listCalls]
	f.listCalls++
	return page, nil
}

func newTestStore(f *fakeS3) *S3Store {
	return &S3Store{client: f, cfg: Config{
		Bucket:        "media",
		PublicBaseURL: "http://127.0.0.1:9000/media/",
		KeyPrefix:     "users",
	}}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestUpload_Success(t *testing.T) {
	origNow := now
	now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = origNow })

	f := &fakeS3{}
	s := newTestStore(f)

	blob, err := s.Upload(context.Background(), writeTemp(t, "me.PNG", "png-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(blob.Key, "users/2025/3/7/"), blob.Key)
	assert.True(t, strings.HasSuffix(blob.Key, ".png"), blob.Key)
	assert.Equal(t, "http://127.0.0.1:9000/media/"+blob.Key, blob.URL)
	assert.Equal(t, blob.Key, f.putKey)
	assert.Equal(t, "png-bytes", f.putBody)
	assert.Equal(t, "image/png", f.contentType)
}

func TestUpload_KeysAreUnique(t *testing.T) {
	s := newTestStore(&fakeS3{})
	p := writeTemp(t, "a.jpg", "x")

	b1, err := s.Upload(context.Background(), p)
	require.NoError(t, err)
	b2, err := s.Upload(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, b1.Key, b2.Key)
}

func TestUpload_Errors(t *testing.T) {
	s := newTestStore(&fakeS3{putErr: errors.New("unreachable")})

	_, err := s.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = s.Upload(context.Background(), writeTemp(t, "a.png", "x"))
	assert.ErrorContains(t, err, "unreachable")
}

func TestDelete(t *testing.T) {
	f := &fakeS3{}
	s := newTestStore(f)

	require.NoError(t, s.Delete(context.Background(), "users/a.png"))
	assert.Equal(t, []string{"users/a.png"}, f.deleted)

	assert.Error(t, s.Delete(context.Background(), ""))

	f.deleteErr = errors.New("denied")
	assert.ErrorContains(t, s.Delete(context.Background(), "users/b.png"), "denied")
}

func TestList_Paginates(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("users/a"), LastModified: aws.Time(ts)}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("users/b")}},
			IsTruncated: aws.Bool(false),
		},
	}}
	s := newTestStore(f)

	objs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "users/a", objs[0].Key)
	assert.True(t, objs[0].LastModified.Equal(ts))
	assert.Equal(t, "users/b", objs[1].Key)
	assert.Equal(t, "users/", f.listPrefix)
	assert.Equal(t, 2, f.listCalls)
}

func TestObjectPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "users", want: "users/"},
		{in: "users/", want: "users/"},
		{in: "/media//users/", want: "media/users/"},
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: ".", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, objectPrefix(tt.in), "prefix %q", tt.in)
	}
}

func TestUploadAndList_SharePrefix(t *testing.T) {
	for _, prefix := range []string{"users/", ""} {
		t.Run(prefix, func(t *testing.T) {
			f := &fakeS3{pages: []*s3.ListObjectsV2Output{{IsTruncated: aws.Bool(false)}}}
			s := newTestStore(f)
			s.cfg.KeyPrefix = prefix

			blob, err := s.Upload(context.Background(), writeTemp(t, "a.png", "x"))
			require.NoError(t, err)
			_, err = s.List(context.Background())
			require.NoError(t, err)

			assert.NotContains(t, blob.Key, "//")
			assert.False(t, strings.HasPrefix(blob.Key, "/"), blob.Key)
			assert.True(t, strings.HasPrefix(blob.Key, f.listPrefix), "key %q outside listing prefix %q", blob.Key, f.listPrefix)
		})
	}
}

func TestList_Error(t *testing.T) {
	s := newTestStore(&fakeS3{listErr: errors.New("down")})
	_, err := s.List(context.Background())
	assert.ErrorContains(t, err, "down")
}

func TestNewS3Store(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var captured s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&captured)
		}
		return &s3.Client{}
	}

	s, err := NewS3Store(context.Background(), Config{Region: "us-east-1", BaseEndpoint: "http://127.0.0.1:9000"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(captured.BaseEndpoint))
	assert.True(t, captured.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3Store(context.Background(), Config{})
	assert.EqualError(t, err, "load-fail")
}
