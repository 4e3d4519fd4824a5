package store

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/r2"
)

// S3API 定义 R2Store 用到的 S3 操作，便于测试
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// R2Store keeps images in an R2 bucket under a key prefix
type R2Store struct {
	api    S3API
	bucket string
	prefix string
}

// NewR2Store creates a store on top of an existing S3 API client
func NewR2Store(api S3API, bucket, prefix string) *R2Store {
	return &R2Store{api: api, bucket: bucket, prefix: prefix}
}

// NewR2StoreFromClient creates a store from the configured R2 client
func NewR2StoreFromClient(client *r2.Client) *R2Store {
	return NewR2Store(client.GetS3Client(), client.GetBucketName(), client.GetPrefix())
}

func (s *R2Store) key(name string) string {
	return s.prefix + name
}

func (s *R2Store) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return &OpError{Op: "put", Name: name, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    s.key(name),
	}).Debug("stored image in bucket")
	return nil
}

func (s *R2Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &OpError{Op: "get", Name: name, Err: ErrNotFound}
		}
		return nil, &OpError{Op: "get", Name: name, Err: err}
	}
	return out.Body, nil
}

func (s *R2Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &OpError{Op: "head", Name: name, Err: err}
	}
	return true, nil
}

func (s *R2Store) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &OpError{Op: "list", Name: s.bucket, Err: err}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			objects = append(objects, Object{
				Name:     name,
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Modified.After(objects[j].Modified)
	})
	return objects, nil
}

// isNotFound 检查是否是"未找到"类型的错误
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}

	// 也检查错误消息中是否包含 404 或 NotFound
	return strings.Contains(err.Error(), "StatusCode: 404") ||
		strings.Contains(err.Error(), "NotFound")
}
