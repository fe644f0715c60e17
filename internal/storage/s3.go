package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// metaEncryption records the encryption format of a stored object.
const metaEncryption = "encryption"

// S3Client stores blobs in a single bucket, encrypting them when a password
// is configured.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	password string
	prefix   string
}

// S3Options configures NewS3Client. Endpoint and the static keys are for
// S3-compatible stores; leave them empty to use AWS and the default
// credential chain.
type S3Options struct {
	Bucket    string
	Password  string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client creates a client for opts.Bucket.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   opts.Bucket,
		password: opts.Password,
		prefix:   "bookletd/",
	}, nil
}

func (s *S3Client) key(k string) string { return s.prefix + k }

// Put uploads data, encrypting it first when a password is set.
func (s *S3Client) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	body := data
	md := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		md[strings.ToLower(k)] = v
	}
	contentType := "application/pdf"
	if s.password != "" {
		enc, err := Encrypt(data, s.password)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", key, err)
		}
		body = enc
		md[metaEncryption] = FormatGCM
		contentType = "application/octet-stream"
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    md,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("key", key).Int("bytes", len(body)).Msg("uploaded object")
	return nil
}

// Get downloads and, if needed, decrypts an object.
func (s *S3Client) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	meta := Metadata{}
	for k, v := range out.Metadata {
		meta[strings.ToLower(k)] = v
	}
	if meta[metaEncryption] == "" {
		return data, meta, nil
	}
	if s.password == "" {
		return nil, nil, fmt.Errorf("object %s is encrypted but no password is configured", key)
	}
	plain, format, err := Decrypt(data, s.password)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt %s: %w", key, err)
	}
	meta[metaEncryption] = format
	return plain, meta, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *S3Client) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// Prune deletes objects under the service prefix older than cutoff.
func (s *S3Client) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	removed := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				log.Warn().Err(err).Str("key", aws.ToString(obj.Key)).Msg("prune: delete failed")
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Ping checks the bucket is reachable.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// FetchObject reads an arbitrary object, for s3:// job inputs. Encrypted
// objects are opened with the client password.
func (s *S3Client) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	if s.password != "" && len(data) >= 8 {
		switch string(data[:8]) {
		case FormatGCM, FormatCBC:
			plain, _, err := Decrypt(data, s.password)
			return plain, err
		}
	}
	return data, nil
}
