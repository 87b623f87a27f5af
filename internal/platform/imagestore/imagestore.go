// Package imagestore deletes the stored files behind image documents, either
// through the image backend's HTTP API or directly in a GCS bucket.
package imagestore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// Store removes image files by name. Deleting an unknown name is not an error.
type Store interface {
	Delete(ctx context.Context, filenames []string) error
}

// New returns the store for cfg.Mode, or nil when image deletion is disabled.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate image store config: %w", err)
	}
	log = log.With("service", "ImageStore")
	switch cfg.Mode {
	case ModeDisabled:
		log.Info("Image file deletion disabled")
		return nil, nil
	case ModeHTTP:
		log.Info("Image store initialized", "mode", cfg.Mode, "backend_url", cfg.BackendURL)
		return NewHTTPStore(log, cfg.BackendURL, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		client, err := newStorageClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		log.Info("Image store initialized", "mode", cfg.Mode, "bucket", cfg.Bucket, "emulator_host", cfg.EmulatorHost)
		return NewGCSStore(log, client, cfg.Bucket), nil
	}
}

// HTTPStore posts deletions to <baseURL>/delete as a form with one
// "filenames" value per file.
type HTTPStore struct {
	log     *logger.Logger
	baseURL string
	client  *http.Client
}

func NewHTTPStore(log *logger.Logger, baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{log: log, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPStore) Delete(ctx context.Context, filenames []string) error {
	names := distinct(filenames)
	if len(names) == 0 {
		return nil
	}
	form := url.Values{"filenames": names}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/delete", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build image delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("image delete request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image backend returned status %d for %d files", resp.StatusCode, len(names))
	}
	s.log.Debug("Image files deleted", "count", len(names))
	return nil
}

// GCSStore deletes objects named after the files from one bucket.
type GCSStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewGCSStore(log *logger.Logger, client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{log: log, client: client, bucket: bucket}
}

func (s *GCSStore) Delete(ctx context.Context, filenames []string) error {
	names := distinct(filenames)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	b := s.client.Bucket(s.bucket)
	for _, name := range names {
		g.Go(func() error {
			err := b.Object(name).Delete(gctx)
			if err == nil || err == storage.ErrObjectNotExist {
				return nil
			}
			return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", name, s.bucket, err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Debug("Image objects deleted", "bucket", s.bucket, "count", len(names))
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func newStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	if cfg.Mode == ModeGCSEmulator {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(clientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func distinct(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
