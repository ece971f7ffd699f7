// Package storage hands out presigned S3 URLs so clients upload files directly
// to the bucket without streaming them through the bridge.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
)

const (
	DefaultExpiry = time.Hour
	MaxExpiry     = 7 * 24 * time.Hour
)

// Presigner is the subset of *s3.PresignClient the uploader needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Settings describe the upload bucket.
type Settings struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible endpoint; forces path-style URLs
	AccessKeyID     string
	SecretAccessKey string
	Expiry          time.Duration
}

// Upload is a presigned write slot. Key is the object key the client must
// reference afterwards; URL accepts a single HTTP PUT.
type Upload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Uploader struct {
	presigner Presigner
	bucket    string
	expiry    time.Duration
	newID     func() (string, error)
}

type UploaderOption func(*Uploader)

// WithKeyGenerator replaces the UUIDv7 key prefix generator.
func WithKeyGenerator(newID func() (string, error)) UploaderOption {
	return func(u *Uploader) {
		u.newID = newID
	}
}

func NewUploader(presigner Presigner, bucket string, expiry time.Duration, options ...UploaderOption) *Uploader {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	u := &Uploader{
		presigner: presigner,
		bucket:    bucket,
		expiry:    expiry,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
	for _, opt := range options {
		opt(u)
	}
	return u
}

// NewS3Client builds an S3 client from settings. Static keys are used when
// both are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, settings Settings) (*s3.Client, error) {
	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.Region),
	}
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("[storage NewS3Client] load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// New wires an Uploader to a real S3 presign client.
func New(ctx context.Context, settings Settings) (*Uploader, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("[storage New] bucket is required")
	}
	client, err := NewS3Client(ctx, settings)
	if err != nil {
		return nil, err
	}
	return NewUploader(s3.NewPresignClient(client), settings.Bucket, settings.Expiry), nil
}

// PresignUpload returns a URL that accepts one PUT of fileName. The object key
// is the file's base name behind a time-ordered unique prefix. A zero expiresIn
// uses the uploader default; longer than MaxExpiry is rejected.
func (u *Uploader) PresignUpload(ctx context.Context, fileName string, expiresIn time.Duration) (*Upload, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, "file name %q", fileName)
	}
	if expiresIn <= 0 {
		expiresIn = u.expiry
	}
	if expiresIn > MaxExpiry {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, "expiry %s exceeds %s", expiresIn, MaxExpiry)
	}

	prefix, err := u.newID()
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Uploader PresignUpload] key")
	}
	key := prefix + "_" + name

	req, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Uploader PresignUpload] %s", key)
	}
	return &Upload{Key: key, URL: req.URL}, nil
}
