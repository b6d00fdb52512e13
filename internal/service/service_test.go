package service

import (
	"context"
	"sync"
	"time"

	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/oracle"
	"github.com/safebites/safebites-api/internal/resolver"
	"github.com/safebites/safebites-api/internal/store"
	"github.com/safebites/safebites-api/pkg/places"
	"github.com/safebites/safebites-api/pkg/serpapi"
)

// Shared collaborator fakes for the service tests.

type fakeStore struct {
	mu sync.Mutex

	records map[string]*model.RestaurantRecord
	reports map[string][]model.CommunityReport
	nearby  []store.NearbyRecord

	getErr       error
	upsertErr    error
	reportsErr   error
	nearbyErr    error
	addReportErr error

	upserted      []*model.RestaurantRecord
	patched       chan store.FieldPatch
	reportCalls   int
	getManyCalls  int
	nearbyCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*model.RestaurantRecord),
		reports: make(map[string][]model.CommunityReport),
		patched: make(chan store.FieldPatch, 8),
	}
}

func (f *fakeStore) Get(_ context.Context, placeID string) (*model.RestaurantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records[placeID], nil
}

func (f *fakeStore) GetMany(_ context.Context, placeIDs []string) (map[string]*model.RestaurantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getManyCalls++
	out := make(map[string]*model.RestaurantRecord)
	for _, id := range placeIDs {
		if rec, ok := f.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeStore) Upsert(_ context.Context, rec *model.RestaurantRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, rec)
	f.records[rec.PlaceID] = rec
	return nil
}

func (f *fakeStore) UpdateFields(_ context.Context, _ string, patch store.FieldPatch) error {
	f.patched <- patch
	return nil
}

func (f *fakeStore) QueryNearby(_ context.Context, _, _, _ float64) ([]store.NearbyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearbyCalls++
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.nearby, nil
}

func (f *fakeStore) ListCommunityReports(_ context.Context, placeID string) ([]model.CommunityReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls++
	if f.reportsErr != nil {
		return nil, f.reportsErr
	}
	return f.reports[placeID], nil
}

func (f *fakeStore) AddCommunityReport(_ context.Context, rep *model.CommunityReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addReportErr != nil {
		return f.addReportErr
	}
	f.reports[rep.PlaceID] = append(f.reports[rep.PlaceID], *rep)
	return nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Close() error                  { return nil }

type fakePlaces struct {
	mu      sync.Mutex
	results []places.Place
	err     error
	calls   int
	lastReq places.SearchRequest
}

func (f *fakePlaces) TextSearch(_ context.Context, req places.SearchRequest) ([]places.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeSerp struct {
	mu      sync.Mutex
	reviews []model.Review
	err     error
	calls   int
}

func (f *fakeSerp) Reviews(_ context.Context, _ string) ([]model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reviews, nil
}

type fakeOracle struct {
	mu         sync.Mutex
	assessment oracle.Assessment
	calls      int
	lastItems  []model.ScoredReviewItem
}

func (f *fakeOracle) Analyze(_ context.Context, items []model.ScoredReviewItem) oracle.Assessment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastItems = items
	return f.assessment
}

type fakeResolver struct {
	loc   resolver.Location
	found bool
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (resolver.Location, bool) {
	f.calls++
	return f.loc, f.found
}

// newTestService wires the fakes with a frozen clock. Nil fakes become nil
// interfaces so the unconfigured-collaborator paths stay testable.
func newTestService(st *fakeStore, pl *fakePlaces, sp *fakeSerp, res *fakeResolver, orc *fakeOracle, now time.Time) *Service {
	var stc store.Store
	if st != nil {
		stc = st
	}
	var plc places.Client
	if pl != nil {
		plc = pl
	}
	var spc serpapi.Client
	if sp != nil {
		spc = sp
	}
	var src AddressResolver
	if res != nil {
		src = res
	}
	var orcc Oracle
	if orc != nil {
		orcc = orc
	}
	svc := New(stc, plc, spc, src, orcc, Options{})
	svc.now = func() time.Time { return now }
	return svc
}
