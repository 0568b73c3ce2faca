package store

import (
	"sync"
	"time"

	"github.com/recordabot/recorda/internal/profile"
	"github.com/recordabot/recorda/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	customerMu    sync.Mutex
	customerCache *cache.Cache // cache for customer lookups by phone
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:        driver,
		profile:       profile,
		customerCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.customerCache.Close()
	return s.driver.Close()
}
