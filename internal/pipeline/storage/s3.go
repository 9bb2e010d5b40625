package storage

import (
	types "FrameForge/pkg"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Storage struct {
	client *s3.Client
}

func NewS3Storage(cfg types.S3Config) (*S3Storage, error) {
	awsConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return &S3Storage{
		client: s3.NewFromConfig(awsConfig),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   body,
	})
	return err
}

func (s *S3Storage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := s.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *S3Storage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return output.Body, nil
}

func (s *S3Storage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	names, _, err := s.list(ctx, bucket, prefix)
	return names, err
}

func (s *S3Storage) ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	_, prefixes, err := s.list(ctx, bucket, prefix)
	return prefixes, err
}

func (s *S3Storage) list(ctx context.Context, bucket, prefix string) ([]string, []string, error) {
	p := dirPrefix(prefix)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(p),
		Delimiter: aws.String("/"),
	})

	var names, prefixes []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if name := strings.TrimPrefix(aws.ToString(obj.Key), p); name != "" {
				names = append(names, name)
			}
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), p), "/")
			if name != "" {
				prefixes = append(prefixes, name)
			}
		}
	}
	sort.Strings(names)
	sort.Strings(prefixes)
	return names, prefixes, nil
}
