package health

import (
	"encoding/json"
	"net/http"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// StatusSource is the part of the store the status endpoint reads.
type StatusSource interface {
	Health() models.ConnectionHealth
	LastUpdate() string
}

type Status struct {
	Badge      Badge          `json:"badge"`
	Connected  bool           `json:"connected"`
	Quality    models.Quality `json:"quality"`
	LastUpdate string         `json:"lastUpdate,omitempty"`
}

func CurrentStatus(src StatusSource) Status {
	h := src.Health()
	return Status{
		Badge:      FromHealth(h),
		Connected:  h.Connected,
		Quality:    h.Quality,
		LastUpdate: src.LastUpdate(),
	}
}

// Handler serves GET /healthz. The response is 200 whenever the process is
// up; the badge carries the feed state.
func Handler(src StatusSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(CurrentStatus(src))
	})
}
