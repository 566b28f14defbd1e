package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

// checksumMetaKey is the user-metadata key holding the record checksum.
const checksumMetaKey = "checksum"

// S3Config configures an S3-compatible bucket (AWS, R2, MinIO).
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PageSize        int
}

// S3 stores each record as one object; the checksum travels as user metadata.
type S3 struct {
	client   *s3.Client
	bucket   string
	pageSize int32
}

// NewS3 builds a client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("contentstore: s3 bucket: %w", apperr.ErrConfigurationMissing)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("contentstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// S3-compatible stores reject the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3{client: client, bucket: cfg.Bucket, pageSize: int32(cfg.PageSize)}, nil
}

func (s *S3) Get(ctx context.Context, key string) (*models.ContentRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("contentstore: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, apperr.StoreIO("contentstore: get "+key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.StoreIO("contentstore: read "+key, err)
	}
	return &models.ContentRecord{
		Key:      key,
		Value:    data,
		Checksum: out.Metadata[checksumMetaKey],
		Size:     int64(len(data)),
	}, nil
}

func (s *S3) Head(ctx context.Context, key string) (*models.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("contentstore: head %s: %w", key, apperr.ErrNotFound)
		}
		return nil, apperr.StoreIO("contentstore: head "+key, err)
	}
	return &models.ObjectInfo{
		Key:      key,
		Checksum: out.Metadata[checksumMetaKey],
		Size:     aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *S3) Put(ctx context.Context, key string, value []byte, checksum string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/json"),
		Metadata:      map[string]string{checksumMetaKey: checksum},
	})
	if err != nil {
		return apperr.StoreIO("contentstore: put "+key, err)
	}
	return nil
}

// List maps the page token onto the S3 continuation token.
func (s *S3) List(ctx context.Context, prefix, pageToken string) (*models.ListPage, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(s.pageSize),
	}
	if pageToken != "" {
		in.ContinuationToken = aws.String(pageToken)
	}
	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, apperr.StoreIO("contentstore: list", err)
	}

	page := &models.ListPage{Items: make([]models.ObjectInfo, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Items = append(page.Items, models.ObjectInfo{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextPageToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return apperr.StoreIO("contentstore: delete "+key, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *S3) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
