package storage

import (
	"context"
	"strings"
)

// NewStorage creates an ObjectStorage instance for cfg, detecting the
// storage flavour from the endpoint when Type is empty.
func NewStorage(ctx context.Context, cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}
	return NewS3Storage(ctx, cfg)
}

func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// Key joins a prefix and path segments into an object key.
func Key(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		all = append(all, p)
	}
	for _, part := range parts {
		if p := strings.Trim(part, "/"); p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, "/")
}
