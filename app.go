package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kwv/censusmesh/pipeline"
)

// App encapsulates the wired pipeline and its dependencies.
type App struct {
	Config    *pipeline.Config
	Registry  *pipeline.Registry
	Cache     *pipeline.GeometryCache
	Store     *pipeline.PointStore
	Catalog   *pipeline.ProductCatalog
	Baselines *pipeline.BaselineResolver
	Loader    *pipeline.Loader
	LOD       *pipeline.LODMachine

	mqttClient mqtt.Client
}

// NewApp wires the pipeline from config. Caches are explicit objects owned
// here and passed by reference, not ambient module state.
func NewApp(config *pipeline.Config) *App {
	registry := pipeline.NewRegistry(config.Endpoints)
	cache := pipeline.NewGeometryCache(registry)
	store := pipeline.NewPointStore()

	var statOpts []pipeline.StatOption
	statURL := os.Getenv("STAT_BASE_URL")
	if statURL == "" {
		statURL = config.StatBaseURL
	}
	if statURL != "" {
		statOpts = append(statOpts, pipeline.WithStatBaseURL(statURL))
	}
	statClient := pipeline.NewStatClient(statOpts...)

	ids := &pipeline.IdentityResolver{}
	producer := pipeline.NewStreamProducer(cache, ids, config.BatchSize, config.BufferFraction)
	baselines := pipeline.NewBaselineResolver(statClient)

	app := &App{
		Config:    config,
		Registry:  registry,
		Cache:     cache,
		Store:     store,
		Catalog:   pipeline.NewProductCatalog(statClient),
		Baselines: baselines,
		LOD:       pipeline.NewLODMachine(config.InitialZoom),
	}

	progress := app.connectProgress(config)
	app.Loader = pipeline.NewLoader(producer, baselines, store, progress)
	return app
}

// connectProgress connects the MQTT progress publisher if a broker is
// configured; otherwise publishing is disabled.
func (a *App) connectProgress(config *pipeline.Config) *pipeline.ProgressPublisher {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		return pipeline.NewProgressPublisher(nil, config.MQTT.PublishPrefix)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	clientID := config.MQTT.ClientID
	if clientID == "" {
		clientID = "censusmesh"
	}
	opts.SetClientID(clientID)
	if config.MQTT.Username != "" {
		opts.SetUsername(config.MQTT.Username)
		opts.SetPassword(config.MQTT.Password)
	}
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("MQTT connect failed, progress publishing disabled: %v", token.Error())
		return pipeline.NewProgressPublisher(nil, config.MQTT.PublishPrefix)
	}

	a.mqttClient = client
	log.Printf("MQTT connected to %s", broker)
	return pipeline.NewProgressPublisher(client, config.MQTT.PublishPrefix)
}

// Close disconnects external connections.
func (a *App) Close() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect(250)
	}
}

// LoadForZoom updates the LOD machine with the zoom value and loads the
// resulting tier for the bounds. The store clear on a tier transition
// happens inside the load, under the loader's serialization, so a request
// rejected with ErrLoadInProgress leaves the store untouched.
func (a *App) LoadForZoom(ctx context.Context, zoom float64, bounds pipeline.Bounds, products []pipeline.Product) error {
	tier, _ := a.LOD.Update(zoom)
	return a.Loader.LoadTier(ctx, tier, bounds, products)
}

// resolveProducts maps comma-separated product ids to curated products,
// skipping unknown ids with a log line. An empty spec selects the first
// curated product.
func (a *App) resolveProducts(spec string) []pipeline.Product {
	if spec == "" {
		return a.Catalog.Products()[:1]
	}
	var products []pipeline.Product
	for _, id := range strings.Split(spec, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		p, ok := a.Catalog.ByID(id)
		if !ok {
			log.Printf("Unknown product id %q, skipping", id)
			continue
		}
		products = append(products, p)
	}
	return products
}

// parseBounds parses "north,south,east,west" into Bounds.
func parseBounds(spec string) (pipeline.Bounds, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return pipeline.Bounds{}, fmt.Errorf("bounds must be north,south,east,west, got %q", spec)
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return pipeline.Bounds{}, fmt.Errorf("bounds component %d: %w", i, err)
		}
		vals[i] = v
	}
	return pipeline.Bounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}, nil
}
