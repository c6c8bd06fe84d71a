package board

import (
	"time"

	"github.com/bluele/gcache"
	"github.com/departureboard/pkg/models"
)

const DefaultCacheSize = 256

// Entry is a rendered board for one station.
type Entry struct {
	StationID string               `json:"station_id"`
	UpdatedAt time.Time            `json:"updated_at"`
	Rows      []models.VehicleInfo `json:"departures"`
}

// Cache keeps the latest rendered board per station for a bounded time.
type Cache struct {
	store gcache.Cache
}

// NewCache builds an LRU cache holding up to size stations. A non-positive
// ttl keeps entries until they are evicted.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	builder := gcache.New(size).LRU()
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}
	return &Cache{store: builder.Build()}
}

func (c *Cache) Get(stationID string) (Entry, bool) {
	value, err := c.store.Get(stationID)
	if err != nil {
		return Entry{}, false
	}
	entry, ok := value.(Entry)
	return entry, ok
}

func (c *Cache) Set(stationID string, rows []models.VehicleInfo, updatedAt time.Time) Entry {
	if rows == nil {
		rows = []models.VehicleInfo{}
	}
	entry := Entry{StationID: stationID, UpdatedAt: updatedAt, Rows: rows}
	// only fails when a loader is configured
	_ = c.store.Set(stationID, entry)
	return entry
}

func (c *Cache) Len() int {
	return c.store.Len(true)
}
