package utils

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"yardtrack/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores files in an R2 bucket through the S3 API.
type Uploader struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

func NewUploader(ctx context.Context, cfg config.R2Config) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing required R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &Uploader{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload puts the file under key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return PublicURL(u.publicBase, key), nil
}

// Delete removes the object behind a URL returned by Upload.
func (u *Uploader) Delete(ctx context.Context, fileURL string) error {
	key, err := KeyFromURL(u.publicBase, fileURL)
	if err != nil {
		return err
	}
	_, err = u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete R2 object: %w", err)
	}
	return nil
}

func PublicURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

func KeyFromURL(base, fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid public URL: %w", err)
	}
	if u.Host != b.Host || !strings.HasPrefix(u.Path, b.Path+"/") {
		return "", fmt.Errorf("%s is not under %s", fileURL, base)
	}
	return strings.TrimPrefix(u.Path, b.Path+"/"), nil
}
