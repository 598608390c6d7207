// Package configurations serves the configuration wizard over HTTP. Every
// mutating route answers with the session snapshot after the change.
package configurations

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/api/middleware"
	"github.com/angelmondragon/packagebuilder-backend/api/responses"
	"github.com/angelmondragon/packagebuilder-backend/api/validators"
	"github.com/angelmondragon/packagebuilder-backend/internal/configurator"
	"github.com/angelmondragon/packagebuilder-backend/internal/currency"
	"github.com/angelmondragon/packagebuilder-backend/internal/sessions"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

// SessionStore is the slice of the session registry the controllers use.
type SessionStore interface {
	Create(ctx context.Context, req sessions.CreateRequest) (*configurator.Session, error)
	Get(id uuid.UUID) (*configurator.Session, error)
	End(id uuid.UUID) error
}

type sessionAction func(r *http.Request, session *configurator.Session) (configurator.Snapshot, error)

// withSession resolves {sessionId}, runs action and writes the snapshot.
func withSession(store SessionStore, logg *logger.Logger, status int, action sessionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.URLParamUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := store.Get(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, id.String())
		}
		snapshot, err := action(r.WithContext(ctx), session)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, snapshot)
	}
}

type createSessionRequest struct {
	PackageID string          `json:"packageId" validate:"required,max=64"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Rate      decimal.Decimal `json:"rate,omitempty"`
}

// Create starts a wizard run for a package.
func Create(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Rate.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Field("rate", "rate must not be negative"))
			return
		}

		session, err := store.Create(r.Context(), sessions.CreateRequest{
			PackageID: strings.TrimSpace(payload.PackageID),
			Currency:  payload.Currency,
			Rate:      payload.Rate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := session.Snapshot()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
	}
}

func Get(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(_ *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		return s.Snapshot()
	})
}

// End disposes the session. In-flight transitions resolve with CodeGone.
func End(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.URLParamUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.End(id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func ToggleFeature(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		featureID, err := validators.URLParam(r, "featureId")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		return s.ToggleFeature(featureID)
	})
}

func ToggleAddOn(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		addOnID, err := validators.URLParam(r, "addOnId")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		return s.ToggleAddOn(addOnID)
	})
}

type usageRequest struct {
	Quantity json.RawMessage `json:"quantity" validate:"required"`
}

// rawQuantity hands the session the text the buyer typed. JSON strings are
// unquoted and numbers are passed through as written.
func (u usageRequest) rawQuantity() string {
	var text string
	if err := json.Unmarshal(u.Quantity, &text); err == nil {
		return text
	}
	return string(u.Quantity)
}

func SetUsage(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		tierID, err := validators.URLParam(r, "tierId")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		var payload usageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return configurator.Snapshot{}, err
		}
		return s.SetUsageQuantity(tierID, payload.rawQuantity())
	})
}

type indexRequest struct {
	Index *int `json:"index" validate:"required"`
}

func SelectPlan(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		var payload indexRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return configurator.Snapshot{}, err
		}
		return s.SelectPlan(*payload.Index)
	})
}

func SelectSupport(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		var payload indexRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return configurator.Snapshot{}, err
		}
		return s.SelectSupport(*payload.Index)
	})
}

func ToggleEnterprise(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		key, err := validators.URLParam(r, "key")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		return s.ToggleEnterpriseFeature(key)
	})
}

func ToggleMatrix(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		tier, err := validators.URLParam(r, "tier")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		addOnID, err := validators.URLParam(r, "addOnId")
		if err != nil {
			return configurator.Snapshot{}, err
		}
		return s.ToggleMatrixCell(enums.MatrixTier(strings.ToLower(tier)), addOnID)
	})
}

type currencyRequest struct {
	Code   string          `json:"code" validate:"required,len=3"`
	Rate   decimal.Decimal `json:"rate"`
	Symbol string          `json:"symbol,omitempty" validate:"omitempty,max=8"`
}

func SetCurrency(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		var payload currencyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return configurator.Snapshot{}, err
		}
		var opts []currency.Option
		if symbol := strings.TrimSpace(payload.Symbol); symbol != "" {
			opts = append(opts, currency.WithSymbol(symbol))
		}
		cur, err := currency.New(payload.Code, payload.Rate, opts...)
		if err != nil {
			return configurator.Snapshot{}, pkgerrors.Field("code", err.Error())
		}
		return s.SetCurrency(cur)
	})
}

// Advance blocks for the step delay. A client that disconnects abandons the
// transition and the session stays on its current step.
func Advance(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		return s.Advance(r.Context())
	})
}

func Retreat(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusOK, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		return s.Retreat(r.Context())
	})
}

// Save submits the finished configuration. The route sits behind the
// idempotency middleware, which forwards the client key here.
func Save(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return withSession(store, logg, http.StatusCreated, func(r *http.Request, s *configurator.Session) (configurator.Snapshot, error) {
		var contact configurator.Contact
		if err := validators.DecodeJSONBody(r, &contact); err != nil {
			return configurator.Snapshot{}, err
		}
		var opts []configurator.SaveOption
		if key := middleware.IdempotencyKeyFromContext(r.Context()); key != "" {
			opts = append(opts, configurator.WithIdempotencyKey(key))
		}
		return s.Save(r.Context(), contact, opts...)
	})
}
