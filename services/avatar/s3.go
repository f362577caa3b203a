package avatarsvc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

// S3Store keeps avatars in an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	conf   core.StorageConfig
}

var _ Store = (*S3Store)(nil)

func NewS3Store(conf core.StorageConfig) (*S3Store, error) {
	if conf.S3Bucket == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}
	awsCfg := aws.Config{
		Region:      conf.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(conf.S3AccessKeyID, conf.S3SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
		}
		o.UsePathStyle = conf.S3UsePathStyle
	})
	return &S3Store{client: client, conf: conf}, nil
}

func (s *S3Store) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.conf.S3Bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}
	return s.url(key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.conf.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "deleting %s", key)
	}
	return nil
}

func (s *S3Store) url(key string) string {
	switch {
	case strings.HasPrefix(s.conf.PublicBaseURL, "http"):
		return publicURL(s.conf.PublicBaseURL, key)
	case s.conf.S3Endpoint != "" && s.conf.S3UsePathStyle:
		return publicURL(s.conf.S3Endpoint, s.conf.S3Bucket+"/"+key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.conf.S3Bucket, s.conf.S3Region, key)
}
