package storage_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/storage"
	"github.com/stretchr/testify/require"
)

// fakePresigner records the last request and returns a predictable URL.
type fakePresigner struct {
	input   *s3.PutObjectInput
	options s3.PresignOptions
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = params
	for _, fn := range optFns {
		fn(&f.options)
	}
	return &v4.PresignedHTTPRequest{
		Method: "PUT",
		URL:    "https://bucket.example/" + aws.ToString(params.Key) + "?sig=1",
	}, nil
}

func fixedKey() (string, error) { return "0190a0b0-0000-7000-8000-000000000001", nil }

func TestPresignUpload_KeyAndExpiry(t *testing.T) {
	fake := &fakePresigner{}
	uploader := storage.NewUploader(fake, "uploads", 0, storage.WithKeyGenerator(fixedKey))

	upload, err := uploader.PresignUpload(context.Background(), "photo.png", 0)
	require.NoError(t, err)
	require.Equal(t, "0190a0b0-0000-7000-8000-000000000001_photo.png", upload.Key)
	require.Equal(t, "https://bucket.example/"+upload.Key+"?sig=1", upload.URL)
	require.Equal(t, "uploads", aws.ToString(fake.input.Bucket))
	require.Equal(t, upload.Key, aws.ToString(fake.input.Key))
	require.Equal(t, storage.DefaultExpiry, fake.options.Expires)

	_, err = uploader.PresignUpload(context.Background(), "photo.png", 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, fake.options.Expires)
}

func TestPresignUpload_StripsDirectories(t *testing.T) {
	fake := &fakePresigner{}
	uploader := storage.NewUploader(fake, "uploads", time.Hour, storage.WithKeyGenerator(fixedKey))

	for _, name := range []string{"../../etc/passwd", "a/b/passwd", `C:\temp\passwd`} {
		upload, err := uploader.PresignUpload(context.Background(), name, 0)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(upload.Key, "_passwd"), upload.Key)
		require.NotContains(t, upload.Key, "/")
	}
}

func TestPresignUpload_RejectsBadInput(t *testing.T) {
	uploader := storage.NewUploader(&fakePresigner{}, "uploads", time.Hour)

	for _, name := range []string{"", "  ", "..", "/"} {
		_, err := uploader.PresignUpload(context.Background(), name, 0)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput, name)
	}

	_, err := uploader.PresignUpload(context.Background(), "ok.png", storage.MaxExpiry+time.Second)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPresignUpload_RealSignerOffline(t *testing.T) {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("https://s3.example.test"),
		UsePathStyle: true,
	})
	uploader := storage.NewUploader(s3.NewPresignClient(client), "uploads", 15*time.Minute, storage.WithKeyGenerator(fixedKey))

	upload, err := uploader.PresignUpload(context.Background(), "photo.png", 0)
	require.NoError(t, err)

	u, err := url.Parse(upload.URL)
	require.NoError(t, err)
	require.Equal(t, "s3.example.test", u.Host)
	require.Equal(t, "/uploads/"+upload.Key, u.Path)
	q := u.Query()
	require.Equal(t, "900", q.Get("X-Amz-Expires"))
	require.NotEmpty(t, q.Get("X-Amz-Signature"))
	require.Contains(t, q.Get("X-Amz-Credential"), "AKIDEXAMPLE/")
}
