package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/confidential-move-client/interfaces"
)

// S3Store keeps one private, server-side encrypted object per key.
type S3Store struct {
	client     s3iface.S3API
	bucketName string
	prefix     string
	log        *slog.Logger
}

// NewS3Store creates an S3 or S3-compatible store. Without static credentials
// the default AWS credential chain is used.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3StoreWithClient(s3.New(sess), bucketName, prefix, log), nil
}

// NewS3StoreWithClient wraps an existing S3 client.
func NewS3StoreWithClient(client s3iface.S3API, bucketName, prefix string, log *slog.Logger) *S3Store {
	if log == nil {
		log = slog.Default()
	}
	return &S3Store{
		client:     client,
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		log:        log,
	}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Get fetches the object for key. Returns ErrKeyNotFound if it doesn't exist.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	objectKey := s.objectKey(key)

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, interfaces.ErrKeyNotFound
		}
		s.log.Error("Failed to get object from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.log.Debug("Fetched key from S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Set uploads value as a private object.
func (s *S3Store) Set(ctx context.Context, key string, value []byte) error {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucketName),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(value),
		ACL:                  aws.String(s3.ObjectCannedACLPrivate),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upload object to S3: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Debug("Stored key in S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", objectKey))
	return nil
}

// Delete removes the object. S3 treats deleting a missing object as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("%w: failed to delete object from S3: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Keys lists all objects under prefix, stripping the store prefix.
func (s *S3Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	strip := ""
	if s.prefix != "" {
		strip = s.prefix + "/"
	}

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(strip + prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.StringValue(obj.Key), strip))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list objects: %v", interfaces.ErrStoreUnavailable, err)
	}
	return keys, nil
}

// Available checks that the bucket can be reached.
func (s *S3Store) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		s.log.Warn("S3 store unavailable",
			slog.String("bucket", s.bucketName),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}
	return true
}

func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404")
}
