package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kwv/censusmesh/pipeline"
)

// newHTTPServer creates the read-only collaborator surface: health, the
// point store snapshot, cached tier geometry, and the curated catalog.
func newHTTPServer(app *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		tier, hasTier := app.Store.Tier()
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Tier      string    `json:"tier,omitempty"`
			Points    int       `json:"points"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Points:    app.Store.Size(),
		}
		if hasTier {
			status.Tier = tier.String()
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Point store snapshot, the terminal artifact for rendering/charting.
	mux.HandleFunc("/points", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(app.Store.Snapshot()); err != nil {
			log.Printf("Error encoding points: %v", err)
		}
	})

	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(app.Catalog.Products()); err != nil {
			log.Printf("Error encoding catalog: %v", err)
		}
	})

	// Raw cached geometry per tier, e.g. /tier/PROVINCE.geojson. Only tiers
	// already fetched are served; this endpoint never triggers a fetch. The
	// bytes are the as-fetched snapshot, so serving is safe while a walk is
	// injecting identities into the live collection.
	mux.HandleFunc("/tier/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/tier/")
		name = strings.TrimSuffix(name, ".geojson")
		tier, err := pipeline.ParseTier(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		data, ok := app.Cache.CachedJSON(tier)
		if !ok {
			http.Error(w, "tier not loaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing tier %s geometry: %v", tier, err)
		}
	})

	// Load trigger for the orchestrating view: POST /load?zoom=&bounds=&products=
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		zoom, err := strconv.ParseFloat(r.URL.Query().Get("zoom"), 64)
		if err != nil {
			http.Error(w, "invalid zoom", http.StatusBadRequest)
			return
		}
		bounds, err := parseBounds(r.URL.Query().Get("bounds"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		products := app.resolveProducts(r.URL.Query().Get("products"))

		if err := app.LoadForZoom(r.Context(), zoom, bounds, products); err != nil {
			if err == pipeline.ErrLoadInProgress {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			log.Printf("Load failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		result := struct {
			Tier   string `json:"tier"`
			Points int    `json:"points"`
		}{
			Tier:   app.LOD.Current().String(),
			Points: app.Store.Size(),
		}
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("Error encoding load result: %v", err)
		}
	})

	return mux
}
