// Package storage uploads binary assets and returns their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// PublicBaseURL serves objects of public buckets.
const PublicBaseURL = "https://storage.googleapis.com"

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

type insertFunc func(ctx context.Context, bucket string, object *gcs.Object, media io.Reader) (*gcs.Object, error)

// GCSUploader writes objects to a Google Cloud Storage bucket through the JSON API.
type GCSUploader struct {
	bucket string
	prefix string
	insert insertFunc
}

// NewGCSUploader builds an uploader. Without a credentials file the application
// default credentials are used.
func NewGCSUploader(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSUploader, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("storage bucket must be set")
	}
	opts := []option.ClientOption{option.WithScopes(gcs.DevstorageReadWriteScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}

	return &GCSUploader{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		insert: func(ctx context.Context, bucket string, object *gcs.Object, media io.Reader) (*gcs.Object, error) {
			return svc.Objects.Insert(bucket, object).
				Media(media, googleapi.ContentType(object.ContentType)).
				Context(ctx).
				Do()
		},
	}, nil
}

// Upload stores body under "<prefix>/<uuid>-<filename>".
func (u *GCSUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := ObjectName(u.prefix, filename)
	stored, err := u.insert(ctx, u.bucket, &gcs.Object{Name: name, ContentType: contentType}, body)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if stored != nil && stored.Name != "" {
		name = stored.Name
	}
	return PublicURL(u.bucket, name), nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds a collision-free object name for an uploaded file.
func ObjectName(prefix, filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "upload"
	}
	name := uuid.NewString() + "-" + base
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		name = prefix + "/" + name
	}
	return name
}

// PublicURL returns the public HTTPS URL of an object.
func PublicURL(bucket, name string) string {
	segments := strings.Split(name, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return PublicBaseURL + "/" + bucket + "/" + strings.Join(segments, "/")
}

var _ Uploader = (*GCSUploader)(nil)
