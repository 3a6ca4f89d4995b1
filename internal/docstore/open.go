package docstore

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindSQL    = "sql"
)

// Open selects a backend by name. The redis client and gorm handle are only used
// by the backends that need them.
func Open(kind string, rdb redis.UniversalClient, prefix string, db *gorm.DB) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindMemory:
		return NewMemory(), nil
	case "", KindRedis:
		if rdb == nil {
			return nil, fmt.Errorf("docstore: redis client is nil")
		}
		return NewRedis(rdb, prefix), nil
	case KindSQL:
		if db == nil {
			return nil, fmt.Errorf("docstore: database is nil")
		}
		s := NewSQL(db)
		if err := s.Migrate(); err != nil {
			return nil, fmt.Errorf("docstore: migrate: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("docstore: unsupported backend %q", kind)
	}
}
