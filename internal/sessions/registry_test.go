package sessions

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/configurator"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

type stubLoader struct {
	catalogs map[string]*catalog.Catalog
}

func (l stubLoader) Load(_ context.Context, id string) (*catalog.Catalog, error) {
	cat, ok := l.catalogs[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
	}
	return cat, nil
}

type noopPersister struct{}

func (noopPersister) Save(context.Context, configurator.Payload) (uuid.UUID, error) {
	return uuid.New(), nil
}

type recordingGauge struct {
	mu   sync.Mutex
	last int
}

func (g *recordingGauge) SetActiveSessions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, max int) (*Registry, *fakeClock, *recordingGauge) {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.DefaultPlans(), pricing.DefaultSupportLevels())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	gauge := &recordingGauge{}
	loader := stubLoader{catalogs: map[string]*catalog.Catalog{
		"pkg-1": {
			Package:  catalog.Package{ID: "pkg-1", Title: "Suite", BasePrice: decimal.NewFromInt(50), Currency: "EUR"},
			Features: []catalog.Feature{},
			AddOns:   []catalog.AddOn{{ID: "crm", Price: decimal.NewFromInt(10)}},
		},
	}}
	reg, err := NewRegistry(Params{
		Loader:      loader,
		Engine:      engine,
		Persister:   noopPersister{},
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Gauge:       gauge,
		IdleTTL:     30 * time.Minute,
		MaxSessions: max,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, clock, gauge
}

func TestCreateUsesPackageCurrencyByDefault(t *testing.T) {
	reg, _, gauge := newTestRegistry(t, 0)

	session, err := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snap, err := session.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Currency != "EUR" {
		t.Fatalf("expected package currency EUR, got %s", snap.Currency)
	}
	if gauge.last != 1 {
		t.Fatalf("expected gauge 1, got %d", gauge.last)
	}

	got, err := reg.Get(session.ID())
	if err != nil || got != session {
		t.Fatalf("Get returned %v, %v", got, err)
	}
}

func TestCreateErrors(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)

	if _, err := reg.Create(context.Background(), CreateRequest{PackageID: "ghost"}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1", Currency: "ZZZ"})
	if typed := pkgerrors.As(err); typed == nil || typed.FieldName() != "currency" {
		t.Fatalf("expected currency validation error, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("failed creates must not register sessions")
	}
}

func TestCreateRespectsCapacity(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 1)
	if _, err := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestEndDisposesSession(t *testing.T) {
	reg, _, gauge := newTestRegistry(t, 0)
	session, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})

	if err := reg.End(session.ID()); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !session.Disposed() {
		t.Fatalf("session should be disposed")
	}
	if _, err := reg.Get(session.ID()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found after end, got %v", err)
	}
	if err := reg.End(session.ID()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("second end should be not found, got %v", err)
	}
	if gauge.last != 0 {
		t.Fatalf("expected gauge 0, got %d", gauge.last)
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	reg, clock, _ := newTestRegistry(t, 0)
	idle, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	clock.Advance(20 * time.Minute)
	active, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})

	clock.Advance(15 * time.Minute)
	if _, err := active.ToggleAddOn("crm"); err != nil {
		t.Fatalf("touch active session: %v", err)
	}

	if n := reg.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if !idle.Disposed() || active.Disposed() {
		t.Fatalf("wrong session expired: idle=%v active=%v", idle.Disposed(), active.Disposed())
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", reg.Len())
	}
}

func TestGetDropsExternallyDisposedSession(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	session, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	session.Dispose()

	if _, err := reg.Get(session.ID()); !pkgerrors.HasCode(err, pkgerrors.CodeGone) {
		t.Fatalf("expected gone, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("disposed session should be forgotten")
	}
}

func TestCloseDisposesAll(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	a, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	b, _ := reg.Create(context.Background(), CreateRequest{PackageID: "pkg-1"})
	reg.Close()
	if !a.Disposed() || !b.Disposed() || reg.Len() != 0 {
		t.Fatalf("close should dispose everything")
	}
}
