package models

import (
	"bytes"
	"encoding/json"
)

// LocalLine is the pseudo-line the journey planner reports for walking
// connections and other non-vehicle departures. It is never displayed.
const LocalLine = "LOC"

// Departure is one raw row of a departure board as returned by the
// journey planner.
type Departure struct {
	Name          string `json:"name"`
	ShortName     string `json:"sname"`
	Type          string `json:"type"`
	StopID        string `json:"stopid"`
	Stop          string `json:"stop"`
	Time          string `json:"time"`
	Date          string `json:"date"`
	JourneyID     string `json:"journeyid"`
	Direction     string `json:"direction"`
	Track         string `json:"track"`
	RealtimeTime  string `json:"rtTime,omitempty"`
	RealtimeDate  string `json:"rtDate,omitempty"`
	FgColor       string `json:"fgColor"`
	BgColor       string `json:"bgColor"`
	Stroke        string `json:"stroke"`
	Accessibility string `json:"accessibility,omitempty"`
}

// HasRealtime reports whether the departure carries a live-updated time.
func (d Departure) HasRealtime() bool {
	return d.RealtimeTime != ""
}

// EffectiveTime returns the realtime "HH:MM" if present, else the scheduled one.
func (d Departure) EffectiveTime() string {
	if d.HasRealtime() {
		return d.RealtimeTime
	}
	return d.Time
}

// EffectiveDate returns the service date belonging to EffectiveTime.
func (d Departure) EffectiveDate() string {
	if d.HasRealtime() && d.RealtimeDate != "" {
		return d.RealtimeDate
	}
	return d.Date
}

// DepartureBoardResponse is the envelope of the departureBoard endpoint.
type DepartureBoardResponse struct {
	DepartureBoard DepartureBoard `json:"DepartureBoard"`
}

type DepartureBoard struct {
	ServerTime string        `json:"servertime"`
	ServerDate string        `json:"serverdate"`
	Error      string        `json:"error,omitempty"`
	ErrorText  string        `json:"errorText,omitempty"`
	Departures DepartureList `json:"Departure"`
}

// DepartureList decodes both the array form and the single-object form the
// journey planner uses when a board holds exactly one departure.
type DepartureList []Departure

func (l *DepartureList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	if trimmed[0] == '{' {
		var single Departure
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*l = DepartureList{single}
		return nil
	}

	var many []Departure
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
