package configurator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/currency"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	"github.com/angelmondragon/packagebuilder-backend/internal/selection"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

const (
	directionForward  = "forward"
	directionBackward = "backward"

	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
	OutcomeDisposed = "disposed"
)

// Recorder receives wizard telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveTransition(step enums.WizardStep, direction, outcome string)
	ObserveSave(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(enums.WizardStep, string, string) {}
func (nopRecorder) ObserveSave(string, time.Duration)                  {}

// Params wires a new Session.
type Params struct {
	ID        uuid.UUID
	Catalog   *catalog.Catalog
	Currency  currency.Context
	Engine    *pricing.Engine
	Persister Persister
	StepDelay time.Duration
	Logger    *logger.Logger
	Recorder  Recorder
	Now       func() time.Time
}

// state is replaced wholesale by every operation.
type state struct {
	currentStep      int
	selectedFeatures []catalog.Feature
	selectedAddOns   []catalog.AddOn
	usageQuantities  map[string]int
	planIndex        *int
	supportIndex     *int
	supportPrice     decimal.Decimal
	enterprise       map[string]bool
	matrix           map[string]bool
	currency         currency.Context
	cache            pricing.PriceCache
	pricing          pricing.State
	submissionID     *uuid.UUID
}

func (st state) clone() state {
	out := st
	out.selectedFeatures = append([]catalog.Feature(nil), st.selectedFeatures...)
	out.selectedAddOns = append([]catalog.AddOn(nil), st.selectedAddOns...)
	out.usageQuantities = cloneInts(st.usageQuantities)
	out.planIndex = cloneIndex(st.planIndex)
	out.supportIndex = cloneIndex(st.supportIndex)
	out.enterprise = cloneFlags(st.enterprise)
	out.matrix = cloneFlags(st.matrix)
	out.cache = st.cache.Clone()
	return out
}

// Session is one buyer's run through the configuration wizard. All methods
// are safe for concurrent use; each one swaps in a fully derived state.
type Session struct {
	id        uuid.UUID
	catalog   catalog.Catalog
	steps     []enums.WizardStep
	engine    *pricing.Engine
	persister Persister
	delay     time.Duration
	logg      *logger.Logger
	recorder  Recorder
	now       func() time.Time

	mu         sync.Mutex
	st         state
	busy       bool
	disposed   bool
	lastActive time.Time
}

// NewSession builds a session from a loaded catalog. The price cache is
// owned by the session and rebuilt whenever its currency changes.
func NewSession(p Params) (*Session, error) {
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if p.Persister == nil {
		return nil, fmt.Errorf("persister required")
	}
	if p.Currency.Code() == "" {
		return nil, fmt.Errorf("currency context required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Recorder == nil {
		p.Recorder = nopRecorder{}
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.StepDelay < 0 {
		p.StepDelay = 0
	}

	cat := copyCatalog(*p.Catalog)
	steps := enums.FixedSteps()
	if cat.Package.IsCustomizable {
		steps = enums.CustomizableSteps()
	}

	s := &Session{
		id:        p.ID,
		catalog:   cat,
		steps:     steps,
		engine:    p.Engine,
		persister: p.Persister,
		delay:     p.StepDelay,
		logg:      p.Logger,
		recorder:  p.Recorder,
		now:       p.Now,
	}

	st := state{
		usageQuantities: map[string]int{},
		supportPrice:    decimal.Zero,
		currency:        p.Currency,
		matrix:          map[string]bool{},
	}
	if !cat.Package.IsCustomizable {
		st.enterprise = NewEnterpriseFlags()
		st.matrix = NewMatrix(cat.AddOns)
	}
	st.cache = s.buildCache(p.Currency.Code())
	st.pricing = s.recompute(st)

	s.st = st
	s.lastActive = p.Now()
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) PackageID() string { return s.catalog.Package.ID }

// LastActive is when the session last accepted an operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Dispose ends the session. In-flight transitions complete as no-ops.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return Snapshot{}, ErrSessionDisposed
	}
	return s.snapshotLocked(), nil
}

func (s *Session) ToggleFeature(id string) (Snapshot, error) {
	feature, ok := findByID(s.catalog.Features, id)
	if !ok {
		return s.rejected(pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("feature %q not found", id)))
	}
	return s.mutate(func(st *state) error {
		st.selectedFeatures = selection.Toggle(st.selectedFeatures, feature)
		return nil
	})
}

func (s *Session) ToggleAddOn(id string) (Snapshot, error) {
	addOn, ok := findByID(s.catalog.AddOns, id)
	if !ok {
		return s.rejected(pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("add-on %q not found", id)))
	}
	return s.mutate(func(st *state) error {
		st.selectedAddOns = selection.Toggle(st.selectedAddOns, addOn)
		return nil
	})
}

// SetUsageQuantity stores the leading integer of raw for the tier, floored
// at zero. Bounds are only checked when leaving the usage step.
func (s *Session) SetUsageQuantity(id, raw string) (Snapshot, error) {
	if _, ok := findByID(s.catalog.UsageTiers, id); !ok {
		return s.rejected(pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("usage tier %q not found", id)))
	}
	return s.mutate(func(st *state) error {
		st.usageQuantities = selection.SetQuantity(id, raw, st.usageQuantities)
		return nil
	})
}

// SelectPlan toggles the billing plan at index.
func (s *Session) SelectPlan(index int) (Snapshot, error) {
	return s.mutate(func(st *state) error {
		next, _, err := s.engine.TogglePlan(st.planIndex, index)
		if err != nil {
			return err
		}
		st.planIndex = next
		return nil
	})
}

// SelectSupport toggles the support level at index. The surcharge is fixed
// against base plus feature total as they stand now.
func (s *Session) SelectSupport(index int) (Snapshot, error) {
	return s.mutate(func(st *state) error {
		basis := s.basePrice(st.currency.Code()).Add(st.pricing.TotalFeaturePrice)
		next, price, err := s.engine.ToggleSupport(st.supportIndex, index, basis)
		if err != nil {
			return err
		}
		st.supportIndex = next
		st.supportPrice = price
		return nil
	})
}

// ToggleEnterpriseFeature flips an enterprise flag on a fixed package.
// Switching on a flag in a locked category reports ErrCategoryLocked and
// changes nothing.
func (s *Session) ToggleEnterpriseFeature(key string) (Snapshot, error) {
	if s.catalog.Package.IsCustomizable {
		return s.rejected(pkgerrors.New(pkgerrors.CodeStateConflict, "enterprise features are only offered on fixed packages"))
	}
	return s.mutate(func(st *state) error {
		next, err := ToggleEnterpriseFlag(st.enterprise, key)
		if err != nil {
			return err
		}
		st.enterprise = next
		return nil
	})
}

// ToggleMatrixCell selects one tier by add-on cell, clearing the rest of the
// grid, or clears the grid when the cell was already selected.
func (s *Session) ToggleMatrixCell(tier enums.MatrixTier, addOnID string) (Snapshot, error) {
	if s.catalog.Package.IsCustomizable {
		return s.rejected(pkgerrors.New(pkgerrors.CodeStateConflict, "the add-on grid is only offered on fixed packages"))
	}
	if !tier.IsValid() {
		return s.rejected(pkgerrors.Field("tier", fmt.Sprintf("unknown tier %q", tier)))
	}
	if _, ok := findByID(s.catalog.AddOns, addOnID); !ok {
		return s.rejected(pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("add-on %q not found", addOnID)))
	}
	return s.mutate(func(st *state) error {
		st.matrix = ToggleMatrix(st.matrix, tier, addOnID)
		return nil
	})
}

// SetCurrency switches the presentation currency and rebuilds the price
// cache. A selected support level is re-priced in the new currency.
func (s *Session) SetCurrency(ctx currency.Context) (Snapshot, error) {
	if ctx.Code() == "" {
		return s.rejected(pkgerrors.Field("currency", "currency is required"))
	}
	return s.mutate(func(st *state) error {
		st.currency = ctx
		st.cache = s.buildCache(ctx.Code())
		if st.supportIndex != nil {
			priced := s.recompute(*st)
			basis := s.basePrice(ctx.Code()).Add(priced.TotalFeaturePrice)
			current := *st.supportIndex
			_, price, err := s.engine.ToggleSupport(nil, current, basis)
			if err != nil {
				return err
			}
			st.supportPrice = price
		}
		return nil
	})
}

// Advance validates the current step, waits out the step delay and moves
// forward one step, clamped to the last.
func (s *Session) Advance(ctx context.Context) (Snapshot, error) {
	return s.transition(ctx, directionForward)
}

// Retreat moves back one step, clamped to the first, and forfeits the
// selected billing plan.
func (s *Session) Retreat(ctx context.Context) (Snapshot, error) {
	return s.transition(ctx, directionBackward)
}

func (s *Session) transition(ctx context.Context, direction string) (Snapshot, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionDisposed
	}
	step := s.steps[s.st.currentStep]
	if s.busy {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.recorder.ObserveTransition(step, direction, OutcomeConflict)
		return snap, ErrBusy
	}
	if direction == directionForward {
		if err := s.validateStep(step, s.st); err != nil {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			s.recorder.ObserveTransition(step, direction, OutcomeInvalid)
			return snap, err
		}
	}
	s.busy = true
	s.lastActive = s.now()
	s.mu.Unlock()

	waitErr := s.wait(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.disposed {
		s.recorder.ObserveTransition(step, direction, OutcomeDisposed)
		return Snapshot{}, ErrSessionDisposed
	}
	if waitErr != nil {
		s.recorder.ObserveTransition(step, direction, OutcomeFailed)
		return s.snapshotLocked(), waitErr
	}

	next := s.st.clone()
	if direction == directionForward {
		next.currentStep = min(next.currentStep+1, len(s.steps)-1)
	} else {
		next.currentStep = max(next.currentStep-1, 0)
		next.planIndex = nil
	}
	next.pricing = s.recompute(next)
	s.st = next
	s.lastActive = s.now()
	s.recorder.ObserveTransition(step, direction, OutcomeOK)
	return s.snapshotLocked(), nil
}

func (s *Session) wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save submits the configuration from the review step. A failed save leaves
// the state intact for another attempt.
func (s *Session) Save(ctx context.Context, contact Contact, opts ...SaveOption) (Snapshot, error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionDisposed
	}
	reject := func(err error, outcome string) (Snapshot, error) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.recorder.ObserveSave(outcome, 0)
		return snap, err
	}
	if s.busy {
		return reject(ErrBusy, OutcomeConflict)
	}
	if s.steps[s.st.currentStep] != enums.StepReview {
		return reject(pkgerrors.New(pkgerrors.CodeStateConflict, "configuration can only be saved from the review step"), OutcomeConflict)
	}
	if s.st.submissionID != nil {
		return reject(pkgerrors.New(pkgerrors.CodeConflict, "configuration already submitted"), OutcomeConflict)
	}
	contact = contact.normalized()
	if err := ValidateContact(contact); err != nil {
		return reject(err, OutcomeInvalid)
	}
	payload := s.payloadLocked(contact)
	payload.IdempotencyKey = o.idempotencyKey
	s.busy = true
	s.lastActive = s.now()
	s.mu.Unlock()

	started := time.Now()
	submissionID, err := s.persister.Save(ctx, payload)
	elapsed := time.Since(started)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.disposed {
		s.recorder.ObserveSave(OutcomeDisposed, elapsed)
		return Snapshot{}, ErrSessionDisposed
	}
	if err != nil {
		s.recorder.ObserveSave(OutcomeFailed, elapsed)
		s.logError(ctx, "configuration save failed", err)
		return s.snapshotLocked(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save configuration")
	}

	next := s.st.clone()
	next.submissionID = &submissionID
	s.st = next
	s.lastActive = s.now()
	s.recorder.ObserveSave(OutcomeOK, elapsed)
	return s.snapshotLocked(), nil
}

func (s *Session) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithSessionID(ctx, s.id.String())
	ctx = s.logg.WithPackageID(ctx, s.catalog.Package.ID)
	s.logg.Error(ctx, msg, err)
}

// mutate applies fn to a copy of the state and commits it with freshly
// derived pricing. On error the state is left untouched. Edits are refused
// with ErrBusy while a transition or save is in flight.
func (s *Session) mutate(fn func(st *state) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return Snapshot{}, ErrSessionDisposed
	}
	if s.busy {
		return s.snapshotLocked(), ErrBusy
	}
	next := s.st.clone()
	if err := fn(&next); err != nil {
		return s.snapshotLocked(), err
	}
	next.pricing = s.recompute(next)
	s.st = next
	s.lastActive = s.now()
	return s.snapshotLocked(), nil
}

// rejected reports err alongside the unchanged state.
func (s *Session) rejected(err error) (Snapshot, error) {
	snap, snapErr := s.Snapshot()
	if snapErr != nil {
		return Snapshot{}, snapErr
	}
	return snap, err
}

func (s *Session) buildCache(code string) pricing.PriceCache {
	items := make([]pricing.Priced, 0, len(s.catalog.Features)+len(s.catalog.AddOns)+len(s.catalog.UsageTiers))
	items = append(items, pricing.AsPriced(s.catalog.Features)...)
	items = append(items, pricing.AsPriced(s.catalog.AddOns)...)
	items = append(items, pricing.AsPriced(s.catalog.UsageTiers)...)
	return pricing.BuildPriceCache(code, items)
}

// basePrice is the package price in code, falling back to its base price.
func (s *Session) basePrice(code string) decimal.Decimal {
	if price, ok := s.catalog.Package.Prices.Lookup(code); ok {
		return price
	}
	return s.catalog.Package.BasePrice
}

func (s *Session) recompute(st state) pricing.State {
	return s.engine.Recompute(pricing.Inputs{
		BasePrice:    s.basePrice(st.currency.Code()),
		Currency:     st.currency.Code(),
		Cache:        st.cache,
		Features:     pricing.AsPriced(st.selectedFeatures),
		AddOns:       pricing.AsPriced(st.selectedAddOns),
		UsageTiers:   pricing.AsPriced(s.catalog.UsageTiers),
		Quantities:   st.usageQuantities,
		PlanIndex:    st.planIndex,
		SupportPrice: st.supportPrice,
	})
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.st.clone()
	step := s.steps[st.currentStep]
	snap := Snapshot{
		SessionID:            s.id,
		PackageID:            s.catalog.Package.ID,
		IsCustomizable:       s.catalog.Package.IsCustomizable,
		Steps:                append([]enums.WizardStep(nil), s.steps...),
		CurrentStep:          st.currentStep,
		CurrentStepName:      step,
		Busy:                 s.busy,
		CanContinue:          true,
		SelectedFeatures:     nonNil(st.selectedFeatures),
		SelectedAddOns:       nonNil(st.selectedAddOns),
		UsageQuantities:      st.usageQuantities,
		SelectedPlanIndex:    st.planIndex,
		SelectedSupportIndex: st.supportIndex,
		EnterpriseFeatures:   st.enterprise,
		CheckboxMatrix:       st.matrix,
		Currency:             st.currency.Code(),
		CurrencySymbol:       st.currency.Symbol(),
		Pricing:              st.pricing,
		FormattedTotal:       st.currency.Format(st.pricing.TotalPrice),
		SubmissionID:         st.submissionID,
	}
	snap.Pricing.FeaturePrices = st.pricing.FeaturePrices.Clone()
	if st.enterprise != nil {
		snap.DisabledCategories = DisabledCategories(st.enterprise)
	}
	if err := s.validateStep(step, st); err != nil {
		snap.CanContinue = false
		if typed := pkgerrors.As(err); typed != nil {
			snap.BlockedReason = typed.Message()
		}
	}
	return snap
}

func (s *Session) payloadLocked(contact Contact) Payload {
	st := s.st.clone()
	payload := Payload{
		SessionID:         s.id,
		PackageID:         s.catalog.Package.ID,
		PackageTitle:      s.catalog.Package.Title,
		Currency:          st.currency.Code(),
		SelectedFeatures:  nonNil(st.selectedFeatures),
		SelectedAddOns:    nonNil(st.selectedAddOns),
		UsageQuantities:   st.usageQuantities,
		BasePrice:         s.basePrice(st.currency.Code()),
		TotalFeaturePrice: st.pricing.TotalFeaturePrice,
		TotalPrice:        st.pricing.TotalPrice,
		PlanIndex:         st.planIndex,
		PlanDiscount:      st.pricing.PlanDiscount,
		SupportIndex:      st.supportIndex,
		SupportPrice:      st.pricing.SupportPrice,
		Contact:           contact,
	}
	if st.planIndex != nil {
		payload.PlanName = s.engine.Plans()[*st.planIndex].Name
	}
	if st.supportIndex != nil {
		payload.SupportName = s.engine.SupportLevels()[*st.supportIndex].Name
	}
	for key, on := range st.enterprise {
		if on {
			payload.EnterpriseFeatures = append(payload.EnterpriseFeatures, key)
		}
	}
	sort.Strings(payload.EnterpriseFeatures)
	if cell, ok := SelectedCell(st.matrix); ok {
		payload.MatrixSelection = cell
	}
	return payload
}

func findByID[T selection.Identifiable](items []T, id string) (T, bool) {
	for _, item := range items {
		if item.Identity() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func cloneInts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneIndex(in *int) *int {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func copyCatalog(in catalog.Catalog) catalog.Catalog {
	out := in
	out.Features = append([]catalog.Feature(nil), in.Features...)
	out.AddOns = make([]catalog.AddOn, len(in.AddOns))
	for i, a := range in.AddOns {
		a.Features = append([]string(nil), a.Features...)
		a.Dependencies = append([]string(nil), a.Dependencies...)
		out.AddOns[i] = a
	}
	out.UsageTiers = append([]catalog.UsageTier(nil), in.UsageTiers...)
	return out
}
