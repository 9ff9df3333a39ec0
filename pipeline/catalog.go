package pipeline

import (
	"context"
	"log"
	"strings"
	"sync"
)

// curatedProducts is the static catalog of statistical products the
// visualization offers by default. IDs are stable keys into the external
// statistics catalog.
var curatedProducts = []Product{
	{ID: "98100001", Title: "Population Counts", Category: CategoryDemographics, Variable: "Population, 2021", Units: "persons", Dimensionality: 1},
	{ID: "98100002", Title: "Population Density", Category: CategoryDemographics, Variable: "Population density per square kilometre", Units: "persons/km²", Dimensionality: 1},
	{ID: "98100041", Title: "Age Distribution", Category: CategoryDemographics, Variable: "Average age of the population", Units: "years", Dimensionality: 3},
	{ID: "34100145", Title: "New Housing Price Index", Category: CategoryHousing, Variable: "Total (house and land)", Units: "index", Dimensionality: 1},
	{ID: "34100133", Title: "Housing Starts", Category: CategoryHousing, Variable: "Housing starts, all areas", Units: "units", Dimensionality: 2},
	{ID: "98100231", Title: "Dwelling Values", Category: CategoryHousing, Variable: "Average value of dwellings", Units: "dollars", Dimensionality: 1},
	{ID: "14100287", Title: "Employment Rate", Category: CategoryLabour, Variable: "Employment rate", Units: "percent", Dimensionality: 2},
	{ID: "14100096", Title: "Unemployment Rate", Category: CategoryLabour, Variable: "Unemployment rate", Units: "percent", Dimensionality: 1},
	{ID: "98100057", Title: "Household Income", Category: CategoryLabour, Variable: "Median total income of household", Units: "dollars", Dimensionality: 1},
}

// ProductCatalog exposes the curated product set and falls back to the
// live full catalog listing when a search misses. Metadata confirmations
// are cached indefinitely per product id.
type ProductCatalog struct {
	client *StatClient

	mu       sync.Mutex
	metadata map[string]*CubeMetadata
	listing  []CatalogEntry // lazily fetched, at most once per process
	listed   bool
}

// NewProductCatalog creates a catalog backed by the given client.
func NewProductCatalog(client *StatClient) *ProductCatalog {
	return &ProductCatalog{
		client:   client,
		metadata: make(map[string]*CubeMetadata),
	}
}

// Products returns the curated product set.
func (pc *ProductCatalog) Products() []Product {
	out := make([]Product, len(curatedProducts))
	copy(out, curatedProducts)
	return out
}

// ByID returns the curated product with the given id.
func (pc *ProductCatalog) ByID(id string) (Product, bool) {
	for _, p := range curatedProducts {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Find searches the curated catalog by title, variable, and category. When
// nothing matches, it falls back to the live full listing and returns
// matching entries as uncategorized one-dimensional products. A failed
// listing fetch yields an empty result, not an error.
func (pc *ProductCatalog) Find(ctx context.Context, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Product
	for _, p := range curatedProducts {
		if strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Variable), q) ||
			strings.EqualFold(p.Category, q) {
			matches = append(matches, p)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	for _, entry := range pc.catalogListing(ctx) {
		if strings.Contains(strings.ToLower(entry.CubeTitleEn), q) {
			matches = append(matches, Product{
				ID:             entry.ProductID.String(),
				Title:          entry.CubeTitleEn,
				Dimensionality: 1,
			})
		}
	}
	return matches
}

// Confirm checks that a product exists on the statistics service, caching
// the answer per product id for the life of the process.
func (pc *ProductCatalog) Confirm(ctx context.Context, productID string) bool {
	pc.mu.Lock()
	if _, ok := pc.metadata[productID]; ok {
		pc.mu.Unlock()
		return true
	}
	pc.mu.Unlock()

	meta, err := pc.client.GetCubeMetadata(ctx, productID)
	if err != nil {
		// Failures are not cached so a later call can retry.
		log.Printf("[catalog] metadata lookup failed for %s: %v", productID, err)
		return false
	}

	pc.mu.Lock()
	pc.metadata[productID] = meta
	pc.mu.Unlock()
	return true
}

func (pc *ProductCatalog) catalogListing(ctx context.Context) []CatalogEntry {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.listed {
		return pc.listing
	}

	entries, err := pc.client.GetCatalogListing(ctx)
	if err != nil {
		log.Printf("[catalog] full listing unavailable: %v", err)
		entries = nil
	}
	pc.listing = entries
	pc.listed = true
	return pc.listing
}
