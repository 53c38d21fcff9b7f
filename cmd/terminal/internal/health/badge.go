// Package health turns the store's connection health into the single badge
// shown to the trader.
package health

import "github.com/shubham-shewale/marketfeed/pkg/models"

type Badge string

const (
	Offline  Badge = "Offline"
	Degraded Badge = "Degraded"
	Live     Badge = "Live"
)

// Derive maps (connected, quality) to a badge. Nothing else is consulted.
// A connected feed reporting disconnected quality is treated as Offline.
func Derive(connected bool, q models.Quality) Badge {
	if !connected {
		return Offline
	}
	switch q {
	case models.QualityGood:
		return Live
	case models.QualityDegraded:
		return Degraded
	default:
		return Offline
	}
}

func FromHealth(h models.ConnectionHealth) Badge {
	return Derive(h.Connected, h.Quality)
}
