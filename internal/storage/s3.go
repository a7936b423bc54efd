package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrObjectNotFound is returned by Fetch when the key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	Accelerate      bool   // Prefer the transfer-accelerated endpoint
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage implements Storage and Presigner against an S3 bucket.
// When Accelerate is set, multipart sessions are opened against the
// transfer-accelerated endpoint first, falling back to the standard
// endpoint if the bucket does not support acceleration.
type S3Storage struct {
	client      *s3.Client
	accelClient *s3.Client
	awsCfg      aws.Config
	cfg         S3Config
	logger      *slog.Logger
}

// Compile-time checks.
var (
	_ Storage   = (*S3Storage)(nil)
	_ Presigner = (*S3Storage)(nil)
)

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)
	accelClient := s3.NewFromConfig(awsCfg, append(clientOpts, func(o *s3.Options) {
		o.UseAccelerate = true
	})...)

	return &S3Storage{
		client:      client,
		accelClient: accelClient,
		awsCfg:      awsCfg,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Put stores an object under key.
func (s *S3Storage) Put(ctx context.Context, key string, data io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Fetch downloads the object at key into a new file under dstDir.
func (s *S3Storage) Fetch(ctx context.Context, key, dstDir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	f, err := os.CreateTemp(dstDir, "src_*__"+filepath.Base(key))
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	name := f.Name()
	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close download file: %w", err)
	}
	return name, nil
}

// PresignPost issues a single-request upload credential for key.
// The max-size condition is independent of any client-declared size.
func (s *S3Storage) PresignPost(ctx context.Context, key, contentTypePrefix string, maxBytes int64, expiry time.Duration) (*PresignedPost, error) {
	presigner := s3.NewPresignClient(s.client)

	resp, err := presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentTypePrefix + "mp4"),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = expiry
		o.Conditions = []interface{}{
			[]interface{}{"starts-with", "$Content-Type", contentTypePrefix},
			[]interface{}{"content-length-range", int64(0), maxBytes},
		}
	})
	if err != nil {
		return nil, fmt.Errorf("presign post %s: %w", key, err)
	}

	return &PresignedPost{
		URL:    resp.URL,
		Fields: resp.Values,
	}, nil
}

// OpenMultipart opens a multipart session and pre-issues per-part PUT URLs
// plus a presigned complete URL. The accelerated endpoint is tried first
// when configured; the caller never sees the fallback.
func (s *S3Storage) OpenMultipart(ctx context.Context, key string, parts int, expiry time.Duration) (*MultipartSession, error) {
	client := s.client
	accelerated := false

	if s.cfg.Accelerate {
		client = s.accelClient
		accelerated = true
	}

	create, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && accelerated && isAccelerateUnavailable(err) {
		s.logger.Warn("transfer acceleration unavailable, falling back to standard endpoint",
			slog.String("bucket", s.cfg.Bucket),
		)
		client = s.client
		accelerated = false
		create, err = client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create multipart upload for %s: %w", key, err)
	}

	uploadID := aws.ToString(create.UploadId)
	presigner := s3.NewPresignClient(client)

	partURLs := make([]string, 0, parts)
	for n := 1; n <= parts; n++ {
		req, err := presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.cfg.Bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(int32(n)), // #nosec G115 - bounded by the hard upload cap
		}, func(o *s3.PresignOptions) {
			o.Expires = expiry
		})
		if err != nil {
			return nil, fmt.Errorf("presign part %d for %s: %w", n, key, err)
		}
		partURLs = append(partURLs, req.URL)
	}

	completeURL, err := s.presignComplete(ctx, key, uploadID, accelerated, expiry)
	if err != nil {
		return nil, fmt.Errorf("presign complete for %s: %w", key, err)
	}

	return &MultipartSession{
		UploadID:    uploadID,
		PartURLs:    partURLs,
		CompleteURL: completeURL,
	}, nil
}

// presignComplete signs the CompleteMultipartUpload POST with the sigv4
// signer directly; the generated presign client does not cover it.
func (s *S3Storage) presignComplete(ctx context.Context, key, uploadID string, accelerated bool, expiry time.Duration) (string, error) {
	creds, err := s.awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve credentials: %w", err)
	}

	raw := s.objectURL(key, accelerated)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, raw, nil)
	if err != nil {
		return "", fmt.Errorf("build complete request: %w", err)
	}

	q := req.URL.Query()
	q.Set("uploadId", uploadID)
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(expiry.Seconds()), 10))
	req.URL.RawQuery = q.Encode()

	signer := v4.NewSigner()
	signedURL, _, err := signer.PresignHTTP(ctx, creds, req,
		"UNSIGNED-PAYLOAD", "s3", s.cfg.Region, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("sign complete request: %w", err)
	}
	return signedURL, nil
}

// objectURL builds the virtual-hosted (or configured endpoint) URL for key.
func (s *S3Storage) objectURL(key string, accelerated bool) string {
	escaped := (&url.URL{Path: "/" + key}).EscapedPath()
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s%s", s.cfg.Endpoint, s.cfg.Bucket, escaped)
	}
	if accelerated {
		return fmt.Sprintf("https://%s.s3-accelerate.amazonaws.com%s", s.cfg.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

// isAccelerateUnavailable reports whether the error means the bucket does
// not have transfer acceleration enabled.
func isAccelerateUnavailable(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRequest"
}
