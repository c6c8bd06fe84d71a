package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepartureBoardDecodesArray(t *testing.T) {
	body := `{"DepartureBoard": {"servertime": "12:00", "Departure": [
		{"name": "Spårvagn 5", "sname": "5", "direction": "Torp", "time": "12:10", "date": "2024-05-10", "journeyid": "j1", "rtTime": "12:12"},
		{"name": "Buss 16", "sname": "16", "direction": "Eketrägatan", "time": "12:20", "date": "2024-05-10", "journeyid": "j2"}
	]}}`

	var resp DepartureBoardResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.DepartureBoard.Departures, 2)

	assert.Equal(t, "5", resp.DepartureBoard.Departures[0].ShortName)
	assert.Equal(t, "12:12", resp.DepartureBoard.Departures[0].EffectiveTime())
	assert.Equal(t, "12:20", resp.DepartureBoard.Departures[1].EffectiveTime())
}

func TestDepartureBoardDecodesSingleObject(t *testing.T) {
	body := `{"DepartureBoard": {"Departure": {"name": "Buss 16", "sname": "16", "time": "12:20", "journeyid": "j2"}}}`

	var resp DepartureBoardResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.DepartureBoard.Departures, 1)
	assert.Equal(t, "j2", resp.DepartureBoard.Departures[0].JourneyID)
}

func TestDepartureBoardWithoutDepartures(t *testing.T) {
	body := `{"DepartureBoard": {"error": "No connections found", "errorText": "No connections found"}}`

	var resp DepartureBoardResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Empty(t, resp.DepartureBoard.Departures)
	assert.Equal(t, "No connections found", resp.DepartureBoard.Error)
}

func TestEffectiveDatePrefersRealtimeDate(t *testing.T) {
	d := Departure{Time: "23:58", Date: "2024-05-10", RealtimeTime: "00:03", RealtimeDate: "2024-05-11"}
	assert.Equal(t, "00:03", d.EffectiveTime())
	assert.Equal(t, "2024-05-11", d.EffectiveDate())

	d.RealtimeDate = ""
	assert.Equal(t, "2024-05-10", d.EffectiveDate())

	d.RealtimeTime = ""
	assert.Equal(t, "23:58", d.EffectiveTime())
}

func TestServiceInstant(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	fallback := time.Date(2024, 5, 10, 11, 0, 0, 0, loc)

	got, err := ServiceInstant("2024-05-11", "00:05", loc, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 5, 11, 0, 5, 0, 0, loc)))

	got, err = ServiceInstant("", "12:30", loc, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 5, 10, 12, 30, 0, 0, loc)))

	_, err = ServiceInstant("2024-05-10", "", loc, fallback)
	assert.Error(t, err)

	_, err = ServiceInstant("2024-05-10", "25:99", loc, fallback)
	assert.Error(t, err)
}
