// Package upload turns client-submitted photos into public objects.
//
// Two key policies exist. Stable keys ({namespace}/{id}.jpg) make re-uploads
// overwrite the previous object at the same URL. Generated keys
// ({namespace}/{uuid}.{ext}) never collide and are never overwritten.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/laskarbuah/freelance-portal/internal/objectstore"
)

const (
	// AttendanceNamespace holds append-only attendance evidence
	AttendanceNamespace = "attendance"

	// ProfileNamespace holds one photo per user, overwritten on resubmission
	ProfileNamespace = "freelance_profile"

	defaultExtension = "jpg"
	profileCacheCtrl = "max-age=0"
)

var (
	ErrNoFile            = errors.New("No file uploaded")
	ErrMissingFile       = errors.New("File is missing")
	ErrMissingIdentifier = errors.New("kode_user is missing")
	ErrInvalidIdentifier = errors.New("kode_user is invalid")
)

// Putter stores a single object
type Putter interface {
	Put(ctx context.Context, obj objectstore.Object) (*objectstore.Uploaded, error)
}

// File is one submitted file part
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StableKey derives a deterministic key from a caller-provided identifier
func StableKey(namespace, id string) string {
	return fmt.Sprintf("%s/%s.jpg", namespace, id)
}

// GeneratedKey derives a unique key, keeping the original extension when present
func GeneratedKey(namespace, filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = defaultExtension
	}
	return fmt.Sprintf("%s/%s.%s", namespace, uuid.NewString(), ext)
}

// Gateway writes uploads to object storage under derived keys
type Gateway struct {
	store  Putter
	logger zerolog.Logger
}

// NewGateway creates a gateway over store
func NewGateway(store Putter, log zerolog.Logger) *Gateway {
	return &Gateway{
		store:  store,
		logger: log.With().Str("component", "upload").Logger(),
	}
}

// UploadGenerated stores attendance evidence under a fresh key with a public-read ACL
func (g *Gateway) UploadGenerated(ctx context.Context, f *File) (*objectstore.Uploaded, error) {
	if f == nil || f.Body == nil {
		return nil, ErrMissingFile
	}

	return g.put(ctx, objectstore.Object{
		Key:         GeneratedKey(AttendanceNamespace, f.Filename),
		Body:        f.Body,
		Size:        f.Size,
		ContentType: f.ContentType,
		PublicRead:  true,
	})
}

// UploadProfile stores the profile photo for kodeUser, replacing any earlier one.
// Visibility comes from the bucket policy.
func (g *Gateway) UploadProfile(ctx context.Context, kodeUser string, f *File) (*objectstore.Uploaded, error) {
	if f == nil || f.Body == nil {
		return nil, ErrMissingFile
	}
	kodeUser = strings.TrimSpace(kodeUser)
	if kodeUser == "" {
		return nil, ErrMissingIdentifier
	}
	if strings.ContainsAny(kodeUser, `/\`) || strings.Contains(kodeUser, "..") {
		return nil, ErrInvalidIdentifier
	}

	return g.put(ctx, objectstore.Object{
		Key:          StableKey(ProfileNamespace, kodeUser),
		Body:         f.Body,
		Size:         f.Size,
		ContentType:  f.ContentType,
		CacheControl: profileCacheCtrl,
	})
}

func (g *Gateway) put(ctx context.Context, obj objectstore.Object) (*objectstore.Uploaded, error) {
	up, err := g.store.Put(ctx, obj)
	if err != nil {
		var se *objectstore.Error
		if errors.As(err, &se) {
			g.logger.Error().
				Str("key", obj.Key).
				Str("error_name", se.Name).
				Str("error_message", se.Message).
				Msg("S3 upload failed")
		} else {
			g.logger.Error().Err(err).Str("key", obj.Key).Msg("S3 upload failed")
		}
		return nil, err
	}

	g.logger.Info().
		Str("key", up.Key).
		Str("content_type", up.ContentType).
		Int64("size", obj.Size).
		Msg("Object uploaded")

	return up, nil
}

// IsValidation reports whether err is caused by missing or bad client input
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrMissingIdentifier) ||
		errors.Is(err, ErrInvalidIdentifier)
}
