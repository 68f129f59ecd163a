// Package objectstore writes uploaded objects to an S3 bucket.
//
// Every write is a single PutObject; there is no multipart upload and no retry.
// Objects are addressed publicly as https://{bucket}.s3.{region}.amazonaws.com/{key}.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// DefaultContentType is used when an object declares none
const DefaultContentType = "image/jpeg"

var (
	ErrInvalidConfig = errors.New("objectstore: bucket and region are required")
	ErrInvalidKey    = errors.New("objectstore: invalid object key")
)

// Client is the subset of the S3 API the store needs
type Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
}

// Config contains configuration for the bucket
type Config struct {
	Bucket         string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // S3-compatible services like MinIO, LocalStack
	ForcePathStyle bool
}

// Object is a single write request
type Object struct {
	Key          string
	Body         io.Reader
	Size         int64
	ContentType  string
	CacheControl string
	PublicRead   bool
}

// Uploaded describes a stored object
type Uploaded struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	PublicURL   string `json:"url"`
}

// Error is a failed storage operation, carrying the provider's error name
type Error struct {
	Op      string
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Name)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Option configures a Store
type Option func(*options)

type options struct {
	client     Client
	httpClient *http.Client
}

// WithClient sets a pre-configured S3 client, mainly for tests
func WithClient(client Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithHTTPClient sets the HTTP client used by the AWS SDK
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// Store writes objects to one bucket. Safe for concurrent use.
type Store struct {
	client Client
	bucket string
	region string
}

// New creates a store. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		if o.httpClient != nil {
			loadOpts = append(loadOpts, config.WithHTTPClient(o.httpClient))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		client = s3aws.NewFromConfig(awsCfg, func(so *s3aws.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// Bucket returns the bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// PublicURL returns the public address of key
func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Put writes obj in one request, overwriting any object at the same key
func (s *Store) Put(ctx context.Context, obj Object) (*Uploaded, error) {
	key := strings.TrimPrefix(obj.Key, "/")
	if key == "" || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, obj.Key)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	input := &s3aws.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        obj.Body,
		ContentType: aws.String(contentType),
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}
	if obj.CacheControl != "" {
		input.CacheControl = aws.String(obj.CacheControl)
	}
	if obj.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, classify("put object", err)
	}

	return &Uploaded{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: contentType,
		PublicURL:   s.PublicURL(key),
	}, nil
}

// classify wraps err with the provider's error name and message
func classify(op string, err error) *Error {
	e := &Error{Op: op, Err: err}

	var apiErr smithy.APIError
	switch {
	case errors.As(err, &apiErr):
		e.Name = apiErr.ErrorCode()
		e.Message = apiErr.ErrorMessage()
		if e.Message == "" {
			e.Message = err.Error()
		}
	case errors.Is(err, context.DeadlineExceeded):
		e.Name = "TimeoutError"
		e.Message = err.Error()
	case errors.Is(err, context.Canceled):
		e.Name = "AbortError"
		e.Message = err.Error()
	default:
		e.Name = "Error"
		e.Message = err.Error()
	}

	return e
}
