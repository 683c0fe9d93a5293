package blobstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/google/uuid"
)

// Config describes the bucket and the credentials used to reach it.
type Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	Bucket        string
	PublicBaseURL string
	KeyPrefix     string
}

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	now                   = time.Now
)

type S3Store struct {
	client objectAPI
	cfg    Config
}

// NewS3Store builds an S3 client with static credentials and a custom base
// endpoint.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	cfg.KeyPrefix = objectPrefix(cfg.KeyPrefix)

	return &S3Store{client: client, cfg: cfg}, nil
}

// objectPrefix normalises a key prefix to "a/b/" form, or "" for the bucket
// root.
func objectPrefix(p string) string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// newKey returns a fresh object key: <prefix>/yyyy/m/d/<uuid><ext>.
func (s *S3Store) newKey(ext string) string {
	d := now()
	return fmt.Sprintf("%s%d/%d/%d/%v%s", objectPrefix(s.cfg.KeyPrefix), d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

// URL returns the public retrieval URL of key.
func (s *S3Store) URL(key string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
}

func (s *S3Store) Upload(ctx context.Context, localPath string) (models.Blob, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return models.Blob{}, err
	}
	defer f.Close()

	ext := filepath.Ext(localPath)
	key := s.newKey(ext)

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.Blob{}, fmt.Errorf("put object: %w", err)
	}

	return models.Blob{Key: key, URL: s.URL(key)}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// List returns every object stored under the configured key prefix.
func (s *S3Store) List(ctx context.Context) ([]models.StoredObject, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.cfg.Bucket)}
	if prefix := objectPrefix(s.cfg.KeyPrefix); prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	p := s3.NewListObjectsV2Paginator(s.client, in)

	var out []models.StoredObject
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			o := models.StoredObject{Key: aws.ToString(obj.Key)}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			out = append(out, o)
		}
	}
	return out, nil
}
