package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Driver identifiers supported by the auth domain.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDatabase = "database"
	DriverRedis    = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	DB *gorm.DB
}

// New creates a credential store based on the provided configuration.
// "sqlite" and "database" both use the shared gorm handle, whatever its dialect.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, DriverDatabase:
		if deps.DB == nil {
			return nil, fmt.Errorf("%s driver requires database handle", driver)
		}
		return NewSQL(deps.DB)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth store driver: %s", driver)
	}
}
