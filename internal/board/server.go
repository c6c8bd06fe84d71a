package board

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/db"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/departures"
	"github.com/departureboard/pkg/models"
	"github.com/gorilla/mux"
	reqlog "github.com/unrolled/logger"
)

// DepartureSource renders the board for a station.
type DepartureSource interface {
	GetDepartures(ctx context.Context, stationID string) ([]models.VehicleInfo, error)
}

// SnapshotHistory looks up the last stored board for a station.
type SnapshotHistory interface {
	LatestSnapshot(ctx context.Context, stationID string) (*db.Snapshot, error)
}

type stationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type boardResponse struct {
	Entry
	Name   string `json:"name,omitempty"`
	Cached bool   `json:"cached"`
	Stale  bool   `json:"stale,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes rendered boards over HTTP.
type Server struct {
	router   *mux.Router
	source   DepartureSource
	cache    *Cache
	history  SnapshotHistory
	stations []config.Station
	names    map[string]string
	logger   logger.Logger
	now      func() time.Time
}

// NewServer registers the routes. Request lines are written to accessLog.
func NewServer(source DepartureSource, cache *Cache, stations []config.Station, accessLog io.Writer, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		router:   mux.NewRouter(),
		source:   source,
		cache:    cache,
		stations: stations,
		names:    make(map[string]string, len(stations)),
		logger:   log,
		now:      time.Now,
	}
	for _, station := range stations {
		s.names[station.ID] = station.Name
	}

	l := reqlog.New(reqlog.Options{
		Prefix:             "departureboard",
		Out:                accessLog,
		IgnoredRequestURIs: []string{"/health"},
	})
	s.router.Use(l.Handler)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stations", s.handleStations).Methods(http.MethodGet)
	s.router.HandleFunc("/departures/{station_id}", s.handleDepartures).Methods(http.MethodGet)

	return s
}

// UseHistory makes the server answer with the last stored board when a live
// render fails and nothing is cached.
func (s *Server) UseHistory(history SnapshotHistory) {
	s.history = history
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"cached_boards": s.cache.Len(),
	})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations := make([]stationResponse, 0, len(s.stations))
	for _, station := range s.stations {
		stations = append(stations, stationResponse{ID: station.ID, Name: station.Name})
	}
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) handleDepartures(w http.ResponseWriter, r *http.Request) {
	stationID := mux.Vars(r)["station_id"]

	if entry, ok := s.cache.Get(stationID); ok {
		writeJSON(w, http.StatusOK, boardResponse{Entry: entry, Name: s.names[stationID], Cached: true})
		return
	}

	rows, err := s.source.GetDepartures(r.Context(), stationID)
	if err != nil {
		if entry, ok := s.lastStored(r.Context(), stationID); ok {
			s.logger.Warn("Serving stored board after failed render",
				"station", stationID, "polled_at", entry.UpdatedAt, "error", err)
			writeJSON(w, http.StatusOK, boardResponse{Entry: entry, Name: s.names[stationID], Stale: true})
			return
		}

		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Failed to render board", "station", stationID, "status", status, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	entry := s.cache.Set(stationID, rows, s.now())
	writeJSON(w, http.StatusOK, boardResponse{Entry: entry, Name: s.names[stationID]})
}

func (s *Server) lastStored(ctx context.Context, stationID string) (Entry, bool) {
	if s.history == nil {
		return Entry{}, false
	}
	snapshot, err := s.history.LatestSnapshot(ctx, stationID)
	if err != nil {
		s.logger.Warn("Failed to load stored board", "station", stationID, "error", err)
		return Entry{}, false
	}
	if snapshot == nil {
		return Entry{}, false
	}
	rows := snapshot.Rows
	if rows == nil {
		rows = []models.VehicleInfo{}
	}
	return Entry{StationID: stationID, UpdatedAt: snapshot.PolledAt, Rows: rows}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, departures.ErrInvalidRouteFormat):
		return http.StatusBadGateway
	case errors.Is(err, departures.ErrAuthenticationFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
