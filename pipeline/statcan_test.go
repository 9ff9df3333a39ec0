package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStatService is a configurable stand-in for the statistics service.
type fakeStatService struct {
	observationValue float64
	scalarFactorCode int
	failObservations bool
	failScalarCodes  bool
	failMetadata     bool
	observationCalls atomic.Int32
	scalarCalls      atomic.Int32
	metadataCalls    atomic.Int32
	catalogEntries   []CatalogEntry
	lastCoordinate   string
}

func (f *fakeStatService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/getCubeMetadata", func(w http.ResponseWriter, r *http.Request) {
		f.metadataCalls.Add(1)
		if f.failMetadata {
			fmt.Fprint(w, `[{"status":"FAILED","object":null}]`)
			return
		}
		fmt.Fprint(w, `[{"status":"SUCCESS","object":{"productId":98100001,"cubeTitleEn":"Population counts"}}]`)
	})

	mux.HandleFunc("/getDataFromCubePidCoordAndLatestNPeriods", func(w http.ResponseWriter, r *http.Request) {
		f.observationCalls.Add(1)
		if f.failObservations {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var reqs []struct {
			Coordinate string `json:"coordinate"`
			LatestN    int    `json:"latestN"`
		}
		_ = json.NewDecoder(r.Body).Decode(&reqs)
		if len(reqs) > 0 {
			f.lastCoordinate = reqs[0].Coordinate
		}
		fmt.Fprintf(w,
			`[{"status":"SUCCESS","object":{"vectorDataPoint":[{"value":%g,"scalarFactorCode":%d}]}}]`,
			f.observationValue, f.scalarFactorCode)
	})

	mux.HandleFunc("/getCodeSets", func(w http.ResponseWriter, r *http.Request) {
		f.scalarCalls.Add(1)
		if f.failScalarCodes {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status":"SUCCESS","object":{"scalar":[
			{"scalarFactorCode":0,"scalarFactorDescEn":"units"},
			{"scalarFactorCode":2,"scalarFactorDescEn":"Hundreds"},
			{"scalarFactorCode":3,"scalarFactorDescEn":"Thousands"},
			{"scalarFactorCode":6,"scalarFactorDescEn":"Millions"},
			{"scalarFactorCode":9,"scalarFactorDescEn":"Billions"}]}}`)
	})

	mux.HandleFunc("/getAllCubesListLite", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.catalogEntries)
	})

	return mux
}

func newFakeStat(t *testing.T, f *fakeStatService) (*StatClient, func()) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	client := NewStatClient(WithStatBaseURL(srv.URL), WithStatHTTPClient(srv.Client()))
	return client, srv.Close
}

func TestStatClient_GetLatestObservation(t *testing.T) {
	fake := &fakeStatService{observationValue: 38929902, scalarFactorCode: 0}
	client, done := newFakeStat(t, fake)
	defer done()

	obs, err := client.GetLatestObservation(context.Background(), "98100001", NationalCoordinate)
	require.NoError(t, err)
	assert.Equal(t, 38929902.0, obs.Value)
	assert.Equal(t, 0, obs.ScalarFactorCode)
	assert.Equal(t, NationalCoordinate, fake.lastCoordinate)
}

func TestStatClient_GetLatestObservation_BadProductID(t *testing.T) {
	client, done := newFakeStat(t, &fakeStatService{})
	defer done()

	_, err := client.GetLatestObservation(context.Background(), "not-a-number", NationalCoordinate)
	assert.Error(t, err)
}

func TestStatClient_GetCubeMetadata(t *testing.T) {
	client, done := newFakeStat(t, &fakeStatService{})
	defer done()

	meta, err := client.GetCubeMetadata(context.Background(), "98100001")
	require.NoError(t, err)
	assert.Equal(t, "Population counts", meta.CubeTitleEn)
}

func TestStatClient_FailedStatus(t *testing.T) {
	client, done := newFakeStat(t, &fakeStatService{failMetadata: true})
	defer done()

	_, err := client.GetCubeMetadata(context.Background(), "98100001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
}

func TestStatClient_GetScalarCodes(t *testing.T) {
	client, done := newFakeStat(t, &fakeStatService{})
	defer done()

	codes, err := client.GetScalarCodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, codes, 5)
}

func TestStatClient_GetCatalogListing(t *testing.T) {
	fake := &fakeStatService{catalogEntries: []CatalogEntry{
		{ProductID: "18100205", CubeTitleEn: "New housing price index", ReleaseTime: "2026-08-21T08:30"},
	}}
	client, done := newFakeStat(t, fake)
	defer done()

	entries, err := client.GetCatalogListing(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "New housing price index", entries[0].CubeTitleEn)
}

func TestBuildScalarTable(t *testing.T) {
	table := buildScalarTable([]ScalarCode{
		{Code: 0, DescriptorEn: "units"},
		{Code: 2, DescriptorEn: "HUNDREDS"},
		{Code: 3, DescriptorEn: "thousands"},
		{Code: 6, DescriptorEn: "Millions of dollars"},
		{Code: 9, DescriptorEn: "Billions"},
	})

	assert.Equal(t, 1.0, table.Factor(0))
	assert.Equal(t, 100.0, table.Factor(2), "descriptor match is case-insensitive")
	assert.Equal(t, 1000.0, table.Factor(3))
	assert.Equal(t, 1e6, table.Factor(6), "substring match tolerates suffixes")
	assert.Equal(t, 1e9, table.Factor(9))
	assert.Equal(t, 1.0, table.Factor(77), "unknown codes scale by 1")
}
