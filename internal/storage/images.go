package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"flashquiz-backend/internal/logger"
)

type Config struct {
	Bucket        string
	CDNDomain     string
	PublicBaseURL string
	EmulatorHost  string
}

// ImageResolver turns the object keys stored on sets into URLs a client can
// load.
type ImageResolver struct {
	cfg    Config
	client *storage.Client
	log    *logger.Logger
}

// NewImageResolver builds a resolver. With no bucket configured it returns
// a resolver that hands keys back unchanged.
func NewImageResolver(ctx context.Context, cfg Config, log *logger.Logger) (*ImageResolver, error) {
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	r := &ImageResolver{cfg: cfg, log: log}
	if cfg.Bucket == "" {
		return r, nil
	}

	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		opts = append(opts, option.WithoutAuthentication(), option.WithEndpoint(cfg.EmulatorHost+"/storage/v1/"))
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	r.client = client
	return r, nil
}

// NewStaticResolver resolves URLs without a storage client. Exists always
// reports true.
func NewStaticResolver(cfg Config) *ImageResolver {
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	return &ImageResolver{cfg: cfg, log: logger.Nop()}
}

func (r *ImageResolver) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// PublicURL resolves key. Values that already are absolute URLs are
// returned as is.
func (r *ImageResolver) PublicURL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") || strings.HasPrefix(key, "data:") {
		return key
	}
	if r.cfg.Bucket == "" {
		return key
	}
	key = strings.TrimLeft(key, "/")

	if r.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", r.cfg.CDNDomain, key)
	}
	if r.cfg.EmulatorHost != "" {
		base := r.cfg.PublicBaseURL
		if base == "" {
			base = r.cfg.EmulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(r.cfg.Bucket), url.PathEscape(key))
	}
	if r.cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", r.cfg.PublicBaseURL, r.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", r.cfg.Bucket, key)
}

// Exists checks that the object behind key is present in the bucket.
func (r *ImageResolver) Exists(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.client.Bucket(r.cfg.Bucket).Object(strings.TrimLeft(key, "/")).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch object attrs: %w", err)
	}
	return true, nil
}
