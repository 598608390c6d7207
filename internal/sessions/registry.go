// Package sessions keeps the live configuration sessions of this process and
// expires the idle ones.
package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/configurator"
	"github.com/angelmondragon/packagebuilder-backend/internal/currency"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

// Gauge tracks how many sessions are live.
type Gauge interface {
	SetActiveSessions(n int)
}

type Params struct {
	Loader          catalog.Loader
	Engine          *pricing.Engine
	Persister       configurator.Persister
	Logger          *logger.Logger
	Recorder        configurator.Recorder
	Gauge           Gauge
	StepDelay       time.Duration
	IdleTTL         time.Duration
	MaxSessions     int
	DefaultCurrency string
	Now             func() time.Time
}

// CreateRequest describes a new wizard run. Currency falls back to the
// package currency, then the service default; a zero Rate means 1.
type CreateRequest struct {
	PackageID string
	Currency  string
	Rate      decimal.Decimal
}

type Registry struct {
	params Params

	mu       sync.RWMutex
	sessions map[uuid.UUID]*configurator.Session
}

func NewRegistry(p Params) (*Registry, error) {
	if p.Loader == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if p.Persister == nil {
		return nil, fmt.Errorf("persister required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.IdleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = "USD"
	}
	return &Registry{params: p, sessions: map[uuid.UUID]*configurator.Session{}}, nil
}

// Create loads the package catalog and starts a session for it.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*configurator.Session, error) {
	if r.atCapacity() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "too many active configuration sessions")
	}

	cat, err := r.params.Loader.Load(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Currency)
	if code == "" {
		code = cat.Package.Currency
	}
	if code == "" {
		code = r.params.DefaultCurrency
	}
	cur, err := currency.New(code, req.Rate)
	if err != nil {
		return nil, pkgerrors.Field("currency", err.Error())
	}

	session, err := configurator.NewSession(configurator.Params{
		ID:        uuid.New(),
		Catalog:   cat,
		Currency:  cur,
		Engine:    r.params.Engine,
		Persister: r.params.Persister,
		StepDelay: r.params.StepDelay,
		Logger:    r.params.Logger,
		Recorder:  r.params.Recorder,
		Now:       r.params.Now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start configuration session")
	}

	r.mu.Lock()
	if r.params.MaxSessions > 0 && len(r.sessions) >= r.params.MaxSessions {
		r.mu.Unlock()
		session.Dispose()
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "too many active configuration sessions")
	}
	r.sessions[session.ID()] = session
	n := len(r.sessions)
	r.mu.Unlock()
	r.report(n)

	logCtx := r.params.Logger.WithSessionID(ctx, session.ID().String())
	logCtx = r.params.Logger.WithPackageID(logCtx, cat.Package.ID)
	r.params.Logger.Info(logCtx, "configuration session started")
	return session, nil
}

// Get returns a live session.
func (r *Registry) Get(id uuid.UUID) (*configurator.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "configuration session not found")
	}
	if session.Disposed() {
		r.remove(id)
		return nil, configurator.ErrSessionDisposed
	}
	return session, nil
}

// End disposes the session and forgets it.
func (r *Registry) End(id uuid.UUID) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "configuration session not found")
	}
	session.Dispose()
	r.report(n)
	return nil
}

// Sweep disposes every session idle for longer than the TTL and returns how
// many it removed.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.params.Now().Add(-r.params.IdleTTL)

	r.mu.Lock()
	expired := []*configurator.Session{}
	for id, session := range r.sessions {
		if session.Disposed() || session.LastActive().Before(cutoff) {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, session := range expired {
		session.Dispose()
	}
	r.report(n)
	if len(expired) > 0 {
		logCtx := r.params.Logger.WithFields(ctx, map[string]any{
			"expired":   len(expired),
			"remaining": n,
		})
		r.params.Logger.Info(logCtx, "idle configuration sessions expired")
	}
	return len(expired)
}

// Close disposes every session, for shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[uuid.UUID]*configurator.Session{}
	r.mu.Unlock()
	for _, session := range all {
		session.Dispose()
	}
	r.report(0)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) atCapacity() bool {
	if r.params.MaxSessions <= 0 {
		return false
	}
	return r.Len() >= r.params.MaxSessions
}

func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	r.report(n)
}

func (r *Registry) report(n int) {
	if r.params.Gauge != nil {
		r.params.Gauge.SetActiveSessions(n)
	}
}
