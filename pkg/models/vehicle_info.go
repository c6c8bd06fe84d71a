package models

// VehicleInfo is one display row: a line/direction pair with the minutes
// until its next two departures.
type VehicleInfo struct {
	Number          string `json:"number"`
	Destination     string `json:"destination"`
	FgColor         string `json:"fgColor"`
	BgColor         string `json:"bgColor"`
	NextMinutes     int    `json:"nextMin"`
	NextNextMinutes *int   `json:"nextNextMin,omitempty"`
}

// HasNextNext reports whether a second departure is known for the row.
func (v VehicleInfo) HasNextNext() bool {
	return v.NextNextMinutes != nil
}
