package configurator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/currency"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

type stubPersister struct {
	mu       sync.Mutex
	err      error
	calls    int
	payloads []Payload
	id       uuid.UUID
}

func (p *stubPersister) Save(_ context.Context, payload Payload) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.payloads = append(p.payloads, payload)
	if p.err != nil {
		return uuid.Nil, p.err
	}
	return p.id, nil
}

type recordedTransition struct {
	step      enums.WizardStep
	direction string
	outcome   string
}

type stubRecorder struct {
	mu          sync.Mutex
	transitions []recordedTransition
	saves       []string
}

func (r *stubRecorder) ObserveTransition(step enums.WizardStep, direction, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, recordedTransition{step, direction, outcome})
}

func (r *stubRecorder) ObserveSave(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, outcome)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func customCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Package: catalog.Package{
			ID:             "pkg-custom",
			Title:          "Builder",
			BasePrice:      dec("100"),
			IsCustomizable: true,
			Currency:       "USD",
			Prices:         types.PriceTable{"EUR": dec("90")},
		},
		Features: []catalog.Feature{
			{ID: "f-core", Name: "Core", BasePrice: dec("20"), IsRequired: true},
			{ID: "f-extra", Name: "Extra", BasePrice: dec("12.5"), Prices: types.PriceTable{"EUR": dec("11")}},
		},
		AddOns: []catalog.AddOn{
			{ID: "a-backup", Name: "Backup", Price: dec("15")},
		},
		UsageTiers: []catalog.UsageTier{
			{ID: "u-seats", Name: "Seats", MinValue: 1, MaxValue: 10, DefaultQuantity: 1, PricePerUnit: dec("2")},
		},
	}
}

func fixedCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Package: catalog.Package{
			ID:        "pkg-fixed",
			Title:     "Suite",
			BasePrice: dec("300"),
			Currency:  "USD",
		},
		AddOns: []catalog.AddOn{
			{ID: "crm", Name: "CRM", Price: dec("40")},
			{ID: "pos-lite", Name: "POS Lite", Price: dec("25")},
		},
	}
}

func newTestSession(t *testing.T, cat *catalog.Catalog, persister Persister, delay time.Duration) (*Session, *stubRecorder) {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.DefaultPlans(), pricing.DefaultSupportLevels())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if persister == nil {
		persister = &stubPersister{id: uuid.New()}
	}
	recorder := &stubRecorder{}
	session, err := NewSession(Params{
		Catalog:   cat,
		Currency:  currency.MustNew("USD"),
		Engine:    engine,
		Persister: persister,
		StepDelay: delay,
		Recorder:  recorder,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session, recorder
}

func mustOK(t *testing.T) func(Snapshot, error) Snapshot {
	return func(snap Snapshot, err error) Snapshot {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return snap
	}
}

func advanceTo(t *testing.T, s *Session, step enums.WizardStep) Snapshot {
	t.Helper()
	snap := mustOK(t)(s.Snapshot())
	for snap.CurrentStepName != step {
		var err error
		snap, err = s.Advance(context.Background())
		if err != nil {
			t.Fatalf("advance from %s: %v", snap.CurrentStepName, err)
		}
	}
	return snap
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	engine, _ := pricing.NewEngine(pricing.DefaultPlans(), pricing.DefaultSupportLevels())
	cases := []Params{
		{Currency: currency.MustNew("USD"), Engine: engine, Persister: &stubPersister{}},
		{Catalog: customCatalog(), Currency: currency.MustNew("USD"), Persister: &stubPersister{}},
		{Catalog: customCatalog(), Currency: currency.MustNew("USD"), Engine: engine},
		{Catalog: customCatalog(), Engine: engine, Persister: &stubPersister{}},
	}
	for i, p := range cases {
		if _, err := NewSession(p); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestStepsFollowPackageKind(t *testing.T) {
	custom, _ := newTestSession(t, customCatalog(), nil, 0)
	snap := mustOK(t)(custom.Snapshot())
	if len(snap.Steps) != 7 || snap.Steps[6] != enums.StepReview {
		t.Fatalf("unexpected customizable steps %v", snap.Steps)
	}
	if snap.EnterpriseFeatures != nil {
		t.Fatalf("customizable sessions carry no enterprise flags")
	}

	fixed, _ := newTestSession(t, fixedCatalog(), nil, 0)
	snap = mustOK(t)(fixed.Snapshot())
	if len(snap.Steps) != 5 || snap.Steps[3] != enums.StepEnterpriseFeatures {
		t.Fatalf("unexpected fixed steps %v", snap.Steps)
	}
	if len(snap.EnterpriseFeatures) != 12 {
		t.Fatalf("expected 12 enterprise flags, got %d", len(snap.EnterpriseFeatures))
	}
	if len(snap.CheckboxMatrix) != 6 {
		t.Fatalf("expected 2 add-ons x 3 tiers, got %d cells", len(snap.CheckboxMatrix))
	}
}

func TestExampleConfigurationTotals(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)

	mustOK(t)(s.ToggleFeature("f-core"))
	mustOK(t)(s.ToggleAddOn("a-backup"))
	mustOK(t)(s.SetUsageQuantity("u-seats", "3"))
	snap := mustOK(t)(s.SelectPlan(1))

	if !snap.Pricing.TotalFeaturePrice.Equal(dec("41")) {
		t.Fatalf("expected total feature price 41, got %s", snap.Pricing.TotalFeaturePrice)
	}
	if !snap.Pricing.TotalPrice.Equal(dec("126.90")) {
		t.Fatalf("expected 126.90, got %s", snap.Pricing.TotalPrice)
	}
	if snap.FormattedTotal != "$126.90" {
		t.Fatalf("unexpected formatted total %q", snap.FormattedTotal)
	}
}

func TestToggleFeatureRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	before := mustOK(t)(s.Snapshot())

	mustOK(t)(s.ToggleFeature("f-extra"))
	after := mustOK(t)(s.ToggleFeature("f-extra"))

	if len(after.SelectedFeatures) != 0 {
		t.Fatalf("expected empty selection, got %v", after.SelectedFeatures)
	}
	if !after.Pricing.TotalPrice.Equal(before.Pricing.TotalPrice) {
		t.Fatalf("round trip changed total: %s -> %s", before.Pricing.TotalPrice, after.Pricing.TotalPrice)
	}
}

func TestUnknownItemsAreNotFound(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	if _, err := s.ToggleFeature("ghost"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for feature, got %v", err)
	}
	if _, err := s.ToggleAddOn("ghost"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for add-on, got %v", err)
	}
	if _, err := s.SetUsageQuantity("ghost", "1"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for usage tier, got %v", err)
	}
}

func TestSetUsageQuantityNeverNegative(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	for _, raw := range []string{"-5", "abc", "", " 7kg"} {
		snap := mustOK(t)(s.SetUsageQuantity("u-seats", raw))
		if snap.UsageQuantities["u-seats"] < 0 {
			t.Fatalf("raw %q produced negative quantity", raw)
		}
	}
	snap := mustOK(t)(s.Snapshot())
	if snap.UsageQuantities["u-seats"] != 7 {
		t.Fatalf("expected leading integer 7, got %d", snap.UsageQuantities["u-seats"])
	}
}

func TestRequiredFeatureGate(t *testing.T) {
	s, rec := newTestSession(t, customCatalog(), nil, 0)
	advanceTo(t, s, enums.StepCoreFeatures)

	snap, err := s.Advance(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation || typed.FieldName() != "f-core" {
		t.Fatalf("expected validation error on f-core, got %v", err)
	}
	if snap.CurrentStepName != enums.StepCoreFeatures || snap.CanContinue {
		t.Fatalf("step should not move: %+v", snap)
	}

	mustOK(t)(s.ToggleFeature("f-core"))
	snap = mustOK(t)(s.Advance(context.Background()))
	if snap.CurrentStepName != enums.StepAddOns {
		t.Fatalf("expected add-ons step, got %s", snap.CurrentStepName)
	}

	if rec.transitions[len(rec.transitions)-2].outcome != OutcomeInvalid {
		t.Fatalf("expected invalid transition recorded, got %+v", rec.transitions)
	}
}

func TestUsageRangeGate(t *testing.T) {
	cat := customCatalog()
	cat.UsageTiers[0].MinValue = 1000
	cat.UsageTiers[0].MaxValue = 100000
	cat.UsageTiers[0].DefaultQuantity = 1000
	s, _ := newTestSession(t, cat, nil, 0)
	mustOK(t)(s.ToggleFeature("f-core"))
	advanceTo(t, s, enums.StepUsage)

	snap := mustOK(t)(s.SetUsageQuantity("u-seats", "500"))
	if snap.UsageQuantities["u-seats"] != 500 {
		t.Fatalf("quantity must not be clamped, got %d", snap.UsageQuantities["u-seats"])
	}
	_, err := s.Advance(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.FieldName() != "u-seats" {
		t.Fatalf("expected validation error on u-seats, got %v", err)
	}

	mustOK(t)(s.SetUsageQuantity("u-seats", "5000"))
	snap = mustOK(t)(s.Advance(context.Background()))
	if snap.CurrentStepName != enums.StepPaymentPlan {
		t.Fatalf("expected payment plan step, got %s", snap.CurrentStepName)
	}
}

func TestUsageGateUsesDefaultWhenUnset(t *testing.T) {
	cat := customCatalog()
	cat.UsageTiers[0].DefaultQuantity = 0
	s, _ := newTestSession(t, cat, nil, 0)
	mustOK(t)(s.ToggleFeature("f-core"))
	advanceTo(t, s, enums.StepUsage)

	if _, err := s.Advance(context.Background()); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("default below minimum should block, got %v", err)
	}
}

func TestRetreatClearsPlanAndClamps(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)

	snap := mustOK(t)(s.Retreat(context.Background()))
	if snap.CurrentStep != 0 {
		t.Fatalf("retreat should clamp at 0, got %d", snap.CurrentStep)
	}

	mustOK(t)(s.SelectPlan(3))
	mustOK(t)(s.Advance(context.Background()))
	snap = mustOK(t)(s.Retreat(context.Background()))
	if snap.SelectedPlanIndex != nil || !snap.Pricing.PlanDiscount.IsZero() {
		t.Fatalf("retreat should clear the plan: idx=%v discount=%s", snap.SelectedPlanIndex, snap.Pricing.PlanDiscount)
	}
}

func TestAdvanceClampsAtReview(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)
	mustOK(t)(s.Advance(context.Background()))
	mustOK(t)(s.ToggleMatrixCell(enums.MatrixTierStartup, "crm"))
	advanceTo(t, s, enums.StepReview)

	snap := mustOK(t)(s.Advance(context.Background()))
	if snap.CurrentStepName != enums.StepReview || snap.CurrentStep != 4 {
		t.Fatalf("advance past review should clamp, got %d", snap.CurrentStep)
	}
}

func TestSelectPlanOutOfRangeKeepsState(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	mustOK(t)(s.SelectPlan(2))

	snap, err := s.SelectPlan(7)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if snap.SelectedPlanIndex == nil || *snap.SelectedPlanIndex != 2 || !snap.Pricing.PlanDiscount.Equal(dec("0.15")) {
		t.Fatalf("state changed on invalid plan: %+v", snap.Pricing)
	}

	snap = mustOK(t)(s.SelectPlan(2))
	if snap.SelectedPlanIndex != nil {
		t.Fatalf("reselect should clear plan")
	}
}

func TestSupportPriceIsSnapshotAtSelection(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	mustOK(t)(s.ToggleFeature("f-core"))
	snap := mustOK(t)(s.SelectSupport(1))
	if !snap.Pricing.SupportPrice.Equal(dec("24")) {
		t.Fatalf("expected 0.20 x 120, got %s", snap.Pricing.SupportPrice)
	}

	snap = mustOK(t)(s.ToggleFeature("f-extra"))
	if !snap.Pricing.SupportPrice.Equal(dec("24")) {
		t.Fatalf("support price should not track features, got %s", snap.Pricing.SupportPrice)
	}
}

func TestSetCurrencyRebuildsCache(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	mustOK(t)(s.ToggleFeature("f-core"))
	mustOK(t)(s.ToggleFeature("f-extra"))
	mustOK(t)(s.SelectSupport(2))

	eur, err := currency.New("EUR", dec("0.9"))
	if err != nil {
		t.Fatalf("currency.New: %v", err)
	}
	snap := mustOK(t)(s.SetCurrency(eur))

	// Package 90 EUR, core falls back to 20, extra 11 EUR.
	if !snap.Pricing.TotalFeaturePrice.Equal(dec("31")) {
		t.Fatalf("expected EUR feature total 31, got %s", snap.Pricing.TotalFeaturePrice)
	}
	if !snap.Pricing.SupportPrice.Equal(dec("48.4")) {
		t.Fatalf("expected support re-priced at 0.40 x 121, got %s", snap.Pricing.SupportPrice)
	}
	if snap.Currency != "EUR" || !snap.Pricing.FeaturePrices["f-extra"].Equal(dec("11")) {
		t.Fatalf("price cache not rebuilt: %v", snap.Pricing.FeaturePrices)
	}
}

func TestEnterpriseLockThroughSession(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)

	mustOK(t)(s.ToggleEnterpriseFeature("sso"))
	snap, err := s.ToggleEnterpriseFeature("custom_reports")
	if !errors.Is(err, ErrCategoryLocked) {
		t.Fatalf("expected ErrCategoryLocked, got %v", err)
	}
	if snap.EnterpriseFeatures["custom_reports"] {
		t.Fatalf("locked toggle must be a no-op")
	}
	if len(snap.DisabledCategories) != 3 {
		t.Fatalf("expected three disabled categories, got %v", snap.DisabledCategories)
	}

	mustOK(t)(s.ToggleEnterpriseFeature("sso"))
	snap = mustOK(t)(s.ToggleEnterpriseFeature("custom_reports"))
	if !snap.EnterpriseFeatures["custom_reports"] {
		t.Fatalf("analytics should unlock once security is cleared")
	}

	custom, _ := newTestSession(t, customCatalog(), nil, 0)
	if _, err := custom.ToggleEnterpriseFeature("sso"); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("customizable sessions should reject enterprise toggles, got %v", err)
	}
}

func TestPaymentPlanGateOnFixedPackages(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)
	snap := mustOK(t)(s.Advance(context.Background()))
	if snap.CanContinue {
		t.Fatalf("continue should be disabled with an empty grid selection")
	}
	if _, err := s.Advance(context.Background()); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	mustOK(t)(s.ToggleMatrixCell(enums.MatrixTierBusiness, "pos-lite"))
	snap = mustOK(t)(s.Advance(context.Background()))
	if snap.CurrentStepName != enums.StepSupportLevel {
		t.Fatalf("expected support step, got %s", snap.CurrentStepName)
	}
}

func TestToggleMatrixCellRejectsBadInput(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)
	if _, err := s.ToggleMatrixCell("gold", "crm"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for tier, got %v", err)
	}
	if _, err := s.ToggleMatrixCell(enums.MatrixTierPersonal, "ghost"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for add-on, got %v", err)
	}
}

func waitBusy(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := s.Snapshot()
		if err == nil && snap.Busy {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("session never became busy")
}

func TestSecondTransitionWhileBusyConflicts(t *testing.T) {
	s, rec := newTestSession(t, fixedCatalog(), nil, 200*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := s.Advance(context.Background())
		done <- err
	}()
	waitBusy(t, s)

	if _, err := s.Retreat(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first advance: %v", err)
	}
	snap := mustOK(t)(s.Snapshot())
	if snap.CurrentStep != 1 || snap.Busy {
		t.Fatalf("expected step 1 and idle, got %d busy=%v", snap.CurrentStep, snap.Busy)
	}
	if rec.transitions[0].outcome != OutcomeConflict {
		t.Fatalf("expected conflict recorded first, got %+v", rec.transitions)
	}
}

func TestEditsWhileAdvancingAreRefused(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	advanceTo(t, s, enums.StepCoreFeatures)
	mustOK(t)(s.ToggleFeature("f-core"))
	s.delay = 100 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := s.Advance(context.Background())
		done <- err
	}()
	waitBusy(t, s)

	snap, err := s.ToggleFeature("f-core")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for toggle during advance, got %v", err)
	}
	if len(snap.SelectedFeatures) != 1 {
		t.Fatalf("refused toggle must not change selection: %+v", snap.SelectedFeatures)
	}
	if _, err := s.SetUsageQuantity("u-seats", "999"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for usage edit during advance, got %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("advance: %v", err)
	}
	snap = mustOK(t)(s.Snapshot())
	if snap.CurrentStepName != enums.StepAddOns {
		t.Fatalf("expected add-ons step, got %s", snap.CurrentStepName)
	}
	if len(snap.SelectedFeatures) != 1 || snap.SelectedFeatures[0].ID != "f-core" {
		t.Fatalf("required feature must still be selected after advancing, got %+v", snap.SelectedFeatures)
	}

	snap = mustOK(t)(s.ToggleAddOn("a-backup"))
	if len(snap.SelectedAddOns) != 1 {
		t.Fatalf("edits should be accepted once the advance completes, got %+v", snap.SelectedAddOns)
	}
}

func TestDisposeDuringAdvanceDropsCompletion(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 100*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := s.Advance(context.Background())
		done <- err
	}()
	waitBusy(t, s)
	s.Dispose()

	if err := <-done; !errors.Is(err, ErrSessionDisposed) {
		t.Fatalf("expected ErrSessionDisposed, got %v", err)
	}
	if _, err := s.Snapshot(); !pkgerrors.HasCode(err, pkgerrors.CodeGone) {
		t.Fatalf("snapshot after dispose should be gone, got %v", err)
	}
	if _, err := s.ToggleAddOn("crm"); !errors.Is(err, ErrSessionDisposed) {
		t.Fatalf("ops after dispose should fail, got %v", err)
	}
}

func TestAdvanceHonoursContextCancel(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	snap, err := s.Advance(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if snap.CurrentStep != 0 || snap.Busy {
		t.Fatalf("cancelled advance must not move: step=%d busy=%v", snap.CurrentStep, snap.Busy)
	}
}

func reviewReadySession(t *testing.T, persister Persister) *Session {
	t.Helper()
	s, _ := newTestSession(t, customCatalog(), persister, 0)
	mustOK(t)(s.ToggleFeature("f-core"))
	mustOK(t)(s.ToggleAddOn("a-backup"))
	mustOK(t)(s.SetUsageQuantity("u-seats", "3"))
	advanceTo(t, s, enums.StepPaymentPlan)
	mustOK(t)(s.SelectPlan(1))
	advanceTo(t, s, enums.StepSupportLevel)
	mustOK(t)(s.SelectSupport(0))
	advanceTo(t, s, enums.StepReview)
	return s
}

func validContact() Contact {
	return Contact{Name: " Ada Buyer ", Email: "Ada@Example.com", Company: "Lovelace Ltd"}
}

func TestSaveSuccess(t *testing.T) {
	id := uuid.New()
	persister := &stubPersister{id: id}
	s := reviewReadySession(t, persister)

	snap := mustOK(t)(s.Save(context.Background(), validContact(), WithIdempotencyKey(" key-1 ")))
	if snap.SubmissionID == nil || *snap.SubmissionID != id {
		t.Fatalf("submission id not recorded: %v", snap.SubmissionID)
	}

	payload := persister.payloads[0]
	if payload.PackageID != "pkg-custom" || payload.SessionID != s.ID() {
		t.Fatalf("unexpected ids in payload: %+v", payload)
	}
	if !payload.TotalPrice.Equal(dec("126.90")) || payload.PlanName != "Quarterly" || payload.SupportName != "Standard" {
		t.Fatalf("unexpected pricing in payload: total=%s plan=%q support=%q", payload.TotalPrice, payload.PlanName, payload.SupportName)
	}
	if len(payload.SelectedFeatures) != 1 || payload.SelectedFeatures[0].Name != "Core" {
		t.Fatalf("features should be full objects: %+v", payload.SelectedFeatures)
	}
	if payload.Contact.Name != "Ada Buyer" || payload.Contact.Email != "ada@example.com" {
		t.Fatalf("contact not normalized: %+v", payload.Contact)
	}
	if payload.IdempotencyKey != "key-1" {
		t.Fatalf("idempotency key not forwarded: %q", payload.IdempotencyKey)
	}

	if _, err := s.Save(context.Background(), validContact()); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second save should conflict, got %v", err)
	}
}

func TestSaveFailureIsRetryable(t *testing.T) {
	persister := &stubPersister{err: errors.New("db down")}
	s := reviewReadySession(t, persister)
	before := mustOK(t)(s.Snapshot())

	snap, err := s.Save(context.Background(), validContact())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) || !pkgerrors.IsRetryable(err) {
		t.Fatalf("expected retryable dependency error, got %v", err)
	}
	if snap.SubmissionID != nil || !snap.Pricing.TotalPrice.Equal(before.Pricing.TotalPrice) || snap.Busy {
		t.Fatalf("state should be intact after failure: %+v", snap)
	}

	persister.mu.Lock()
	persister.err = nil
	persister.id = uuid.New()
	persister.mu.Unlock()
	if _, err := s.Save(context.Background(), validContact()); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestSaveValidatesStepAndContact(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	if _, err := s.Save(context.Background(), validContact()); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("save before review should conflict, got %v", err)
	}

	persister := &stubPersister{id: uuid.New()}
	s = reviewReadySession(t, persister)
	_, err := s.Save(context.Background(), Contact{Name: "Ada", Email: "not-an-email"})
	if typed := pkgerrors.As(err); typed == nil || typed.FieldName() != "contact.email" {
		t.Fatalf("expected contact.email validation error, got %v", err)
	}
	if persister.calls != 0 {
		t.Fatalf("persister must not be called on invalid contact")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestSession(t, fixedCatalog(), nil, 0)
	snap := mustOK(t)(s.Snapshot())
	snap.EnterpriseFeatures["sso"] = true
	snap.CheckboxMatrix["business-crm"] = true

	fresh := mustOK(t)(s.Snapshot())
	if fresh.EnterpriseFeatures["sso"] || fresh.CheckboxMatrix["business-crm"] {
		t.Fatalf("snapshot mutation leaked into session")
	}
}

func TestConcurrentTogglesStayConsistent(t *testing.T) {
	s, _ := newTestSession(t, customCatalog(), nil, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ToggleFeature("f-extra")
		}()
	}
	wg.Wait()

	snap := mustOK(t)(s.Snapshot())
	if len(snap.SelectedFeatures) != 0 {
		t.Fatalf("an even number of toggles should leave nothing selected, got %v", snap.SelectedFeatures)
	}
	if !snap.Pricing.TotalPrice.Equal(dec("100")) {
		t.Fatalf("expected base price only, got %s", snap.Pricing.TotalPrice)
	}
}
