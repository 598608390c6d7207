package configurator

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

// Contact is the form captured on the review step.
type Contact struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Company string `json:"company,omitempty" validate:"omitempty,max=160"`
	Notes   string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func (c Contact) normalized() Contact {
	return Contact{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:   strings.TrimSpace(c.Phone),
		Company: strings.TrimSpace(c.Company),
		Notes:   strings.TrimSpace(c.Notes),
	}
}

var contactValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}()

// ValidateContact returns a validation error naming the first bad field.
func ValidateContact(c Contact) error {
	err := contactValidator.Struct(c)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contact details")
	}
	fe := errs[0]
	return pkgerrors.Field("contact."+fe.Field(), fmt.Sprintf("%s %s", fe.Field(), contactMessage(fe)))
}

func contactMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}

// Payload is what a finished configuration hands to the Persister.
type Payload struct {
	SessionID          uuid.UUID         `json:"sessionId"`
	PackageID          string            `json:"packageId"`
	PackageTitle       string            `json:"packageTitle"`
	Currency           string            `json:"currency"`
	SelectedFeatures   []catalog.Feature `json:"selectedFeatures"`
	SelectedAddOns     []catalog.AddOn   `json:"selectedAddOns"`
	UsageQuantities    map[string]int    `json:"usageQuantities"`
	BasePrice          decimal.Decimal   `json:"basePrice"`
	TotalFeaturePrice  decimal.Decimal   `json:"totalFeaturePrice"`
	TotalPrice         decimal.Decimal   `json:"totalPrice"`
	PlanIndex          *int              `json:"planIndex"`
	PlanName           string            `json:"planName,omitempty"`
	PlanDiscount       decimal.Decimal   `json:"planDiscount"`
	SupportIndex       *int              `json:"supportIndex"`
	SupportName        string            `json:"supportName,omitempty"`
	SupportPrice       decimal.Decimal   `json:"supportPrice"`
	EnterpriseFeatures []string          `json:"enterpriseFeatures,omitempty"`
	MatrixSelection    string            `json:"matrixSelection,omitempty"`
	Contact            Contact           `json:"contact"`
	IdempotencyKey     string            `json:"-"`
}

// Persister stores a finished configuration and returns its submission id.
type Persister interface {
	Save(ctx context.Context, payload Payload) (uuid.UUID, error)
}

type saveOptions struct {
	idempotencyKey string
}

type SaveOption func(*saveOptions)

// WithIdempotencyKey forwards a client supplied key to the Persister.
func WithIdempotencyKey(key string) SaveOption {
	return func(o *saveOptions) {
		o.idempotencyKey = strings.TrimSpace(key)
	}
}
