package departures

import "errors"

var (
	// ErrInvalidRouteFormat is returned when a line's short name carries no
	// route number to sort by. It usually means the upstream schema drifted.
	ErrInvalidRouteFormat = errors.New("invalid route format")

	// ErrAuthenticationFailed marks credential failures no retry can fix.
	// Fetchers wrap it so the aggregator stops immediately.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
