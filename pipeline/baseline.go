package pipeline

import (
	"context"
	"log"
	"strings"
	"sync"
)

// categoryFallbacks are the static constants returned when any network step
// fails. Fallbacks are never cached, so a later successful fetch still
// supersedes them.
var categoryFallbacks = map[string]float64{
	CategoryHousing:      500000,
	CategoryLabour:       60000,
	CategoryDemographics: 5000,
}

// genericFallback covers products of any other category.
const genericFallback = 100

// FallbackBaseline returns the static baseline constant for a category.
func FallbackBaseline(category string) float64 {
	if v, ok := categoryFallbacks[category]; ok {
		return v
	}
	return genericFallback
}

// ScalarTable maps unit-scale codes to numeric multipliers. Until a richer
// table is fetched it holds the single identity entry {0: 1}.
type ScalarTable map[int]float64

// IdentityScalarTable returns the one-entry identity table.
func IdentityScalarTable() ScalarTable {
	return ScalarTable{0: 1}
}

// Factor returns the multiplier for a code, defaulting to 1 for unknown codes.
func (st ScalarTable) Factor(code int) float64 {
	if f, ok := st[code]; ok {
		return f
	}
	return 1
}

// scalarDescriptors maps descriptor substrings (matched case-insensitively)
// to multipliers when building the table from the service code set.
var scalarDescriptors = []struct {
	substr string
	factor float64
}{
	{"hundreds", 100},
	{"thousands", 1000},
	{"millions", 1e6},
	{"billions", 1e9},
}

// buildScalarTable converts the service's code set into multipliers.
// Descriptors that match no known magnitude keep factor 1 (plain units).
func buildScalarTable(codes []ScalarCode) ScalarTable {
	table := IdentityScalarTable()
	for _, code := range codes {
		desc := strings.ToLower(code.DescriptorEn)
		factor := 1.0
		for _, sd := range scalarDescriptors {
			if strings.Contains(desc, sd.substr) {
				factor = sd.factor
				break
			}
		}
		table[code.Code] = factor
	}
	return table
}

// BaselineResolver fetches and caches one live national scalar value per
// statistical product. Cached values never expire within a session.
// Concurrent first calls for the same product collapse onto one fetch;
// unrelated products proceed independently.
type BaselineResolver struct {
	client *StatClient

	mu       sync.Mutex
	cache    map[string]float64
	inflight map[string]*inflightBaseline

	scalarOnce  sync.Once
	scalarTable ScalarTable
}

type inflightBaseline struct {
	done  chan struct{}
	value float64
	ok    bool
}

// NewBaselineResolver creates a resolver backed by the given client.
func NewBaselineResolver(client *StatClient) *BaselineResolver {
	return &BaselineResolver{
		client:      client,
		cache:       make(map[string]float64),
		inflight:    make(map[string]*inflightBaseline),
		scalarTable: IdentityScalarTable(),
	}
}

// scalars returns the scalar factor table, fetching it at most once per
// process. A failed fetch leaves the identity table in place.
func (br *BaselineResolver) scalars(ctx context.Context) ScalarTable {
	br.scalarOnce.Do(func() {
		codes, err := br.client.GetScalarCodes(ctx)
		if err != nil {
			log.Printf("[baseline] scalar code set unavailable, using identity table: %v", err)
			return
		}
		br.scalarTable = buildScalarTable(codes)
	})
	return br.scalarTable
}

// Resolve returns the national baseline for the product: the latest single
// observation at the fixed national coordinate, scaled by its unit-scale
// factor. The scaled value is cached per product id. Any failure returns
// the product category's static fallback constant without caching it.
func (br *BaselineResolver) Resolve(ctx context.Context, product Product) float64 {
	br.mu.Lock()
	if v, ok := br.cache[product.ID]; ok {
		br.mu.Unlock()
		return v
	}
	if pending, ok := br.inflight[product.ID]; ok {
		br.mu.Unlock()
		select {
		case <-pending.done:
			if pending.ok {
				return pending.value
			}
			return FallbackBaseline(product.Category)
		case <-ctx.Done():
			return FallbackBaseline(product.Category)
		}
	}

	pending := &inflightBaseline{done: make(chan struct{})}
	br.inflight[product.ID] = pending
	br.mu.Unlock()

	value, err := br.fetch(ctx, product)

	br.mu.Lock()
	delete(br.inflight, product.ID)
	if err == nil {
		br.cache[product.ID] = value
		pending.value = value
		pending.ok = true
	}
	br.mu.Unlock()
	close(pending.done)

	if err != nil {
		log.Printf("[baseline] %s (%s): falling back to category constant: %v",
			product.ID, product.Category, err)
		return FallbackBaseline(product.Category)
	}
	return value
}

func (br *BaselineResolver) fetch(ctx context.Context, product Product) (float64, error) {
	table := br.scalars(ctx)

	obs, err := br.client.GetLatestObservation(ctx, product.ID, NationalCoordinate)
	if err != nil {
		return 0, err
	}

	return obs.Value * table.Factor(obs.ScalarFactorCode), nil
}
