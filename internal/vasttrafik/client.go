package vasttrafik

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/departures"
	"github.com/departureboard/pkg/models"
)

const UserAgent = "departureboard/1.0"

// Tokens is the part of TokenSource the client needs.
type Tokens interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client reads departure boards from the Västtrafik journey planner.
type Client struct {
	config     config.VasttrafikConfig
	httpClient *http.Client
	tokens     Tokens
	logger     logger.Logger
}

// NewHTTPClient returns the client shared by token and board requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

func NewClient(cfg config.VasttrafikConfig, httpClient *http.Client, tokens Tokens, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     log,
	}
}

// New wires a token source and client from configuration.
func New(cfg config.VasttrafikConfig, log logger.Logger) *Client {
	httpClient := NewHTTPClient(cfg.Timeout)
	return NewClient(cfg, httpClient, NewTokenSource(cfg, httpClient, log), log)
}

// FetchDepartures returns one page of the departure board for stationID
// starting at cursor.
func (c *Client) FetchDepartures(ctx context.Context, stationID string, cursor departures.Cursor) ([]models.Departure, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.config.APIURL, "/") + "/departureBoard"
	query := url.Values{}
	query.Set("id", stationID)
	query.Set("date", cursor.Date)
	query.Set("time", cursor.Time)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching departure board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// expired or revoked server side; next attempt gets a fresh token
		c.tokens.Invalidate()
		return nil, fmt.Errorf("departure board rejected token (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("departure board returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload models.DepartureBoardResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding departure board: %w", err)
	}
	board := payload.DepartureBoard
	if board.Error != "" {
		return nil, fmt.Errorf("departure board error %s: %s", board.Error, board.ErrorText)
	}

	c.logger.Debug("Departure board fetched",
		"station", stationID,
		"date", cursor.Date,
		"time", cursor.Time,
		"records", len(board.Departures),
		"duration", time.Since(start))

	return board.Departures, nil
}
