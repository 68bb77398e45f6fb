// Package media stores user images in an S3-compatible bucket and hands back
// the URL under which they are served.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Skotchmaster/streamhub/internal/domain"
)

// File is one uploaded image as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client putObjectAPI
	cfg    Config
	now    func() time.Time
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is empty")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{client: client, cfg: cfg, now: time.Now}, nil
}

// Upload stores f under a fresh key in the kind folder ("avatars", "covers").
func (u *S3Uploader) Upload(ctx context.Context, kind string, f *File) (string, error) {
	if f == nil || f.Body == nil {
		return "", fmt.Errorf("upload %s: no file: %w", kind, domain.ErrUpload)
	}

	body, size, err := seekable(f)
	if err != nil {
		return "", fmt.Errorf("upload %s: read file: %w: %v", kind, domain.ErrUpload, err)
	}
	if size == 0 {
		return "", fmt.Errorf("upload %s: empty file: %w", kind, domain.ErrUpload)
	}

	key := u.objectKey(kind, f.Name)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if f.ContentType != "" {
		in.ContentType = aws.String(f.ContentType)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s: %w: %v", kind, domain.ErrUpload, err)
	}
	return u.PublicURL(key), nil
}

func (u *S3Uploader) objectKey(kind, name string) string {
	d := u.now().UTC()
	ext := strings.ToLower(filepath.Ext(name))
	return fmt.Sprintf("%s/%d/%02d/%s%s", kind, d.Year(), d.Month(), uuid.New(), ext)
}

// PublicURL builds the address clients fetch key from.
func (u *S3Uploader) PublicURL(key string) string {
	switch {
	case u.cfg.PublicURL != "":
		return strings.TrimRight(u.cfg.PublicURL, "/") + "/" + key
	case u.cfg.Endpoint != "":
		return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + path.Join(u.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	}
}

// the SDK signs the payload hash, so the body has to be seekable
func seekable(f *File) (io.ReadSeeker, int64, error) {
	if rs, ok := f.Body.(io.ReadSeeker); ok && f.Size > 0 {
		return rs, f.Size, nil
	}
	data, err := io.ReadAll(f.Body)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
