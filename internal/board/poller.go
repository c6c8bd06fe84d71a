package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/departures"
	"github.com/departureboard/pkg/models"
)

// SnapshotStore persists rendered boards.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, stationID string, polledAt time.Time, rows []models.VehicleInfo) (string, error)
}

// Poller renders every configured station on a fixed interval, keeping the
// cache warm and optionally storing each rendering.
type Poller struct {
	source   DepartureSource
	cache    *Cache
	store    SnapshotStore
	stations []config.Station
	interval time.Duration
	logger   logger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	isRunning bool
	cancelFn  context.CancelFunc
	done      chan struct{}
	err       error
}

// NewPoller creates a poller. store may be nil.
func NewPoller(source DepartureSource, cache *Cache, store SnapshotStore, stations []config.Station, interval time.Duration, log logger.Logger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{
		source:   source,
		cache:    cache,
		store:    store,
		stations: stations,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("poller is already running")
	}
	if len(p.stations) == 0 {
		return fmt.Errorf("at least one station must be configured")
	}
	if p.interval <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancelFn = cancel
	p.done = make(chan struct{})
	p.err = nil
	p.isRunning = true

	p.logger.Info("Starting board poller", "stations", len(p.stations), "interval", p.interval)
	go p.pollLoop(ctx, p.done)

	return nil
}

// Stop cancels polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.logger.Info("Stopping board poller")
	p.cancelFn()
	done := p.done
	p.mu.Unlock()

	<-done
}

func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Done is closed when the poll loop exits, either through Stop or because
// of a credential failure reported by Err.
func (p *Poller) Done() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done
}

// Err returns the error that stopped the poller, if any.
func (p *Poller) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *Poller) pollLoop(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.isRunning = false
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			p.logger.Error("Board poller stopped", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce renders every station once. It only returns an error for
// failures that make further polling pointless.
func (p *Poller) PollOnce(ctx context.Context) error {
	for _, station := range p.stations {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.pollStation(ctx, station); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) pollStation(ctx context.Context, station config.Station) error {
	start := p.now()
	rows, err := p.source.GetDepartures(ctx, station.ID)
	if err != nil {
		if errors.Is(err, departures.ErrAuthenticationFailed) {
			return err
		}
		if ctx.Err() == nil {
			p.logger.Warn("Failed to render board", "station", station.ID, "error", err)
		}
		return nil
	}

	p.cache.Set(station.ID, rows, start)

	p.logger.Info("Board rendered",
		"station", station.ID,
		"name", station.Name,
		"rows", len(rows),
		"duration", time.Since(start))
	for _, row := range rows {
		fields := []interface{}{"station", station.ID, "line", row.Number, "destination", row.Destination, "next_min", row.NextMinutes}
		if row.HasNextNext() {
			fields = append(fields, "next_next_min", *row.NextNextMinutes)
		}
		p.logger.Debug("Departure", fields...)
	}

	if p.store != nil {
		if _, err := p.store.SaveSnapshot(ctx, station.ID, start, rows); err != nil {
			p.logger.Warn("Failed to store snapshot", "station", station.ID, "error", err)
		}
	}

	return nil
}
