package submissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packagebuilder-backend/internal/configurator"
	dbpkg "github.com/angelmondragon/packagebuilder-backend/pkg/db"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
	"github.com/angelmondragon/packagebuilder-backend/pkg/outbox"
	"github.com/angelmondragon/packagebuilder-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service stores finished configurations and queues their outbox event. It
// satisfies configurator.Persister.
type Service struct {
	db     txRunner
	repo   Repository
	outbox eventEmitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(db txRunner, repo Repository, emitter eventEmitter, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("submission repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Service{db: db, repo: repo, outbox: emitter, logg: logg, now: time.Now}, nil
}

var _ configurator.Persister = (*Service)(nil)

// Save writes the submission and its event atomically. A repeated
// idempotency key returns the submission stored the first time.
func (s *Service) Save(ctx context.Context, payload configurator.Payload) (uuid.UUID, error) {
	row, err := toModel(payload, s.now().UTC())
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode submission")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventConfigurationSubmitted,
			AggregateType: enums.AggregateConfigurationSubmission,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{SessionID: payload.SessionID, Channel: "wizard"},
			Data:          eventFor(row.ID, payload, row.CreatedAt),
			OccurredAt:    row.CreatedAt,
		})
	})
	if err == nil {
		s.logSaved(ctx, row)
		return row.ID, nil
	}

	if row.IdempotencyKey != nil && isIdempotencyConflict(err) {
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, *row.IdempotencyKey)
		if findErr != nil {
			return uuid.Nil, findErr
		}
		if existing.SessionID != payload.SessionID {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used by another configuration")
		}
		return existing.ID, nil
	}
	return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store submission")
}

func (s *Service) logSaved(ctx context.Context, row *models.ConfigurationSubmission) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithSessionID(ctx, row.SessionID.String())
	ctx = s.logg.WithPackageID(ctx, row.PackageID)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"submission_id": row.ID.String(),
		"total_price":   row.TotalPrice.String(),
		"currency":      row.Currency,
	})
	s.logg.Info(ctx, "configuration submitted")
}

func toModel(payload configurator.Payload, now time.Time) (*models.ConfigurationSubmission, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &models.ConfigurationSubmission{
		ID:             uuid.New(),
		SessionID:      payload.SessionID,
		PackageID:      payload.PackageID,
		Currency:       payload.Currency,
		TotalPrice:     payload.TotalPrice,
		PlanIndex:      payload.PlanIndex,
		PlanDiscount:   payload.PlanDiscount,
		SupportIndex:   payload.SupportIndex,
		SupportPrice:   payload.SupportPrice,
		ContactName:    payload.Contact.Name,
		ContactEmail:   payload.Contact.Email,
		ContactPhone:   optional(payload.Contact.Phone),
		ContactCompany: optional(payload.Contact.Company),
		Notes:          optional(payload.Contact.Notes),
		IdempotencyKey: optional(payload.IdempotencyKey),
		Payload:        raw,
		CreatedAt:      now,
	}, nil
}

func eventFor(id uuid.UUID, payload configurator.Payload, at time.Time) payloads.ConfigurationSubmittedEvent {
	return payloads.ConfigurationSubmittedEvent{
		SubmissionID:   id,
		SessionID:      payload.SessionID,
		PackageID:      payload.PackageID,
		PackageTitle:   payload.PackageTitle,
		Currency:       payload.Currency,
		TotalPrice:     payload.TotalPrice,
		PlanName:       payload.PlanName,
		SupportName:    payload.SupportName,
		FeatureCount:   len(payload.SelectedFeatures),
		AddOnCount:     len(payload.SelectedAddOns),
		ContactName:    payload.Contact.Name,
		ContactEmail:   payload.Contact.Email,
		ContactCompany: payload.Contact.Company,
		SubmittedAt:    at,
	}
}

// isIdempotencyConflict matches the named constraint on postgres and the
// column-qualified message sqlite reports instead.
func isIdempotencyConflict(err error) bool {
	return dbpkg.IsUniqueViolation(err, idempotencyConstraint) ||
		dbpkg.IsUniqueViolation(err, "configuration_submissions.idempotency_key")
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
