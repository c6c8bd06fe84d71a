package departures

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/departureboard/pkg/models"
)

const (
	viaSeparator = " via "

	// lowContrastBg is unreadable on the boards; it is drawn as black instead.
	lowContrastBg = "#00abe5"
	substituteBg  = "#000000"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// routeNumber extracts the numeric route from a short name such as
// "Spårvagn 5" or "16X".
func routeNumber(shortName string) (int, error) {
	digits := nonDigits.ReplaceAllString(shortName, "")
	if digits == "" {
		return 0, fmt.Errorf("%w: %q has no route number", ErrInvalidRouteFormat, shortName)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidRouteFormat, shortName, err)
	}
	return n, nil
}

func destination(direction string) string {
	if i := strings.Index(direction, viaSeparator); i >= 0 {
		return direction[:i]
	}
	return direction
}

func displayBg(color string) string {
	if color == lowContrastBg {
		return substituteBg
	}
	return color
}

type sortableBin struct {
	route   int
	entries []entry
}

// Format turns bins into display rows ordered by route number. Bins of the
// LOC pseudo-line and empty bins are left out; lines sharing a route number
// keep the order in which their bins were discovered.
func Format(bins Bins, now time.Time) ([]models.VehicleInfo, error) {
	candidates := make([]sortableBin, 0, bins.Len())
	for _, key := range bins.order {
		entries := bins.bins[key]
		if len(entries) == 0 {
			continue
		}
		first := entries[0].departure
		if first.Name == models.LocalLine {
			continue
		}
		route, err := routeNumber(first.ShortName)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, sortableBin{route: route, entries: entries})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].route < candidates[j].route
	})

	rows := make([]models.VehicleInfo, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, vehicleInfo(c.entries, now))
	}
	return rows, nil
}

func vehicleInfo(entries []entry, now time.Time) models.VehicleInfo {
	first := entries[0].departure
	info := models.VehicleInfo{
		Number:      first.ShortName,
		Destination: destination(first.Direction),
		FgColor:     first.FgColor,
		BgColor:     displayBg(first.BgColor),
	}

	if len(entries) == 1 {
		info.NextMinutes = clampMinutes(minutesUntil(entries[0].departs, now))
		return info
	}

	// Later board requests may report an earlier vehicle
	ordered := append([]entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return minutesUntil(ordered[i].departs, now) < minutesUntil(ordered[j].departs, now)
	})

	info.NextMinutes = clampMinutes(minutesUntil(ordered[0].departs, now))
	nextNext := clampMinutes(minutesUntil(ordered[1].departs, now))
	info.NextNextMinutes = &nextNext
	return info
}
