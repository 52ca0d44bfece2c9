package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
)

// Status is the live platform state served to the dashboard.
type Status struct {
	Azimuth         float64      `json:"azimuth"`
	Elevation       float64      `json:"elevation"`
	AzimuthTarget   float64      `json:"azimuth_target"`
	ElevationTarget float64      `json:"elevation_target"`
	Tracking        bool         `json:"tracking"`
	Oriented        bool         `json:"oriented"`
	Deadzones       [][2]float64 `json:"deadzones,omitempty"`
	DroppedTicks    uint64       `json:"dropped_ticks"`
}

// StatusFunc supplies the current Status on demand.
type StatusFunc func() Status

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	broadcaster *StatusBroadcaster
	status      StatusFunc
	staticFS    fs.FS
}

// NewHandlers creates the handler set.
func NewHandlers(broadcaster *StatusBroadcaster, status StatusFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		broadcaster: broadcaster,
		status:      status,
		staticFS:    staticFS,
	}
}

// ServeIndex serves the dashboard page.
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// HandleOrientation serves the current platform state as JSON.
func (h *Handlers) HandleOrientation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.status()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleStatusStream streams debug output to the client as SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := h.broadcaster.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
