package storage

import (
	"fmt"

	"git.home.luguber.info/inful/docstream/internal/config"
)

// Open builds the Store selected by the export configuration. Local stores
// write under outputDir.
func Open(cfg config.StoreConfig, outputDir string) (Store, error) {
	switch cfg.Kind {
	case "", "local":
		return NewFSStore(outputDir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 store requires a bucket")
		}
		return NewS3(NewS3Client(cfg.Region, cfg.Endpoint), cfg.Bucket, cfg.Prefix), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
