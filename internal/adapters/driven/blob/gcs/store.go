// Package gcs stores raw documents in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/traceq/internal/adapters/driven/blob"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Verify interface compliance.
var _ driven.BlobStore = (*Store)(nil)

// Config holds bucket settings.
type Config struct {
	Bucket string

	// Prefix is prepended to every object key.
	Prefix string

	// CredentialsFile is an optional service account key path.
	CredentialsFile string
}

// Store writes blobs as GCS objects and returns gs:// URIs.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

// New creates a GCS-backed store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", domain.ErrInvalidInput)
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *storage.Client, cfg Config) *Store {
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}
}

// Put uploads data unless the object already exists.
func (s *Store) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	const op = "blob.gcs.put"
	key := blob.ObjectKey(s.now(), data, suggestedName)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	uri := "gs://" + s.bucket + "/" + key

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(key)
	if _, err := obj.Attrs(ctx); err == nil {
		return uri, nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return "", domain.Retrievable(op, err)
	}

	// DoesNotExist keeps concurrent writers of the same key from clobbering.
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", domain.Retrievable(op, fmt.Errorf("writing object: %w", err))
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return uri, nil
		}
		return "", domain.Retrievable(op, fmt.Errorf("closing object writer: %w", err))
	}
	logger.Debug("stored blob", "uri", uri, "bytes", len(data))
	return uri, nil
}

// Get downloads a gs:// object.
func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, uri)
	}
	if err != nil {
		return nil, domain.Retrievable("blob.gcs.get", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.Retrievable("blob.gcs.get", err)
	}
	return data, nil
}

// Close closes the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ParseURI splits gs://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, perr := url.Parse(uri)
	if perr != nil || u.Scheme != "gs" || u.Host == "" || strings.TrimPrefix(u.Path, "/") == "" {
		return "", "", fmt.Errorf("%w: not a gs:// uri: %q", domain.ErrInvalidInput, uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
