package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kwv/censusmesh/pipeline"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "", "Path to configuration file (optional)")
	httpMode   = flag.Bool("http", false, "Run HTTP server for the collaborator surface")
	httpPort   = flag.Int("http-port", 8080, "HTTP server port")
	loadOnce   = flag.String("load", "", "One-shot mode: zoom value to load and exit (e.g. 3.5)")
	boundsFlag = flag.String("bounds", "83,41,-52,-141", "Viewport bounds as north,south,east,west")
	productIDs = flag.String("products", "", "Comma-separated product ids (default: first curated product)")
)

func main() {
	flag.Parse()
	fmt.Printf("censusmesh version: %s\n", Version)

	// .env is optional; real env vars win either way.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	config := pipeline.DefaultConfig()
	if *configFile != "" {
		loaded, err := pipeline.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		config = loaded
	}

	app := NewApp(config)
	defer app.Close()

	if *loadOnce != "" {
		runLoadOnce(app)
		return
	}

	if *httpMode {
		runHTTP(app)
		return
	}

	fmt.Println("censusmesh pipeline")
	fmt.Println("Use --load=ZOOM to load one tier and print a summary")
	fmt.Println("Use --http to serve the collaborator surface")
	fmt.Println("\nConfiguration:")
	fmt.Println("  --config config.yaml - endpoints, batch size, buffer fraction, MQTT")
	fmt.Println("  MQTT_BROKER / STAT_BASE_URL env vars override config")
}

// runLoadOnce loads the tier for the given zoom and prints a summary.
func runLoadOnce(app *App) {
	var zoom float64
	if _, err := fmt.Sscanf(*loadOnce, "%f", &zoom); err != nil {
		log.Fatalf("Invalid --load zoom %q: %v", *loadOnce, err)
	}
	bounds, err := parseBounds(*boundsFlag)
	if err != nil {
		log.Fatalf("Invalid --bounds: %v", err)
	}
	products := app.resolveProducts(*productIDs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := app.LoadForZoom(ctx, zoom, bounds, products); err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	tier := app.LOD.Current()
	fmt.Printf("Tier: %s\n", tier)
	fmt.Printf("Points: %d\n", app.Store.Size())
	for _, p := range products {
		fmt.Printf("Product %s (%s): baseline applied\n", p.ID, p.Title)
	}
}

// runHTTP serves the collaborator surface until interrupted.
func runHTTP(app *App) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *httpPort),
		Handler: newHTTPServer(app),
	}

	go func() {
		log.Printf("HTTP server listening on :%d", *httpPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
