package transaction

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrMissingTwin      = errors.New("twin id is required")
	ErrInvalidAccountID = errors.New("account id is required")
)

// Category is the semantic spending category a transaction resolves to
type Category string

const (
	CategoryIncome         Category = "income"
	CategoryDining         Category = "dining"
	CategoryGroceries      Category = "groceries"
	CategoryShopping       Category = "shopping"
	CategoryEntertainment  Category = "entertainment"
	CategoryTravel         Category = "travel"
	CategorySubscriptions  Category = "subscriptions"
	CategoryTransportation Category = "transportation"
	CategoryUtilities      Category = "utilities"
	CategoryHousing        Category = "housing"
	CategoryHealthcare     Category = "healthcare"
	CategoryDebtPayment    Category = "debt_payment"
	CategoryTransfer       Category = "transfer"
	CategoryFees           Category = "fees"
	CategoryOther          Category = "other"
)

var knownCategories = map[Category]struct{}{
	CategoryIncome: {}, CategoryDining: {}, CategoryGroceries: {}, CategoryShopping: {},
	CategoryEntertainment: {}, CategoryTravel: {}, CategorySubscriptions: {},
	CategoryTransportation: {}, CategoryUtilities: {}, CategoryHousing: {},
	CategoryHealthcare: {}, CategoryDebtPayment: {}, CategoryTransfer: {},
	CategoryFees: {}, CategoryOther: {},
}

// ParseCategory normalizes a free-form category name. ok is false for unknown names.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := knownCategories[c]
	return c, ok
}

// IsDiscretionary reports whether spend in the category is optional
func (c Category) IsDiscretionary() bool {
	switch c {
	case CategoryDining, CategoryShopping, CategoryEntertainment, CategoryTravel, CategorySubscriptions:
		return true
	}
	return false
}

// Transaction is one bank transaction of a twin.
// Amount is in minor units; positive is an outflow, income is flagged by IsIncomeDeposit.
type Transaction struct {
	ID               string    `json:"id"`
	TwinID           uuid.UUID `json:"twin_id"`
	AccountID        string    `json:"account_id"`
	Date             time.Time `json:"date"`
	Amount           int64     `json:"amount"`
	MerchantText     string    `json:"merchant_text"`
	RawCategoryHint  string    `json:"raw_category_hint,omitempty"`
	HintConfidence   float64   `json:"hint_confidence"`
	ResolvedCategory Category  `json:"resolved_category"`
	IsRecurring      bool      `json:"is_recurring"`
	IsIncomeDeposit  bool      `json:"is_income_deposit"`
	ConfidenceScore  float64   `json:"confidence_score"`
}

// Validate rejects malformed transactions before they reach scoring or storage
func (t Transaction) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.TwinID, validation.By(requireUUID)),
		validation.Field(&t.Date, validation.Required),
		validation.Field(&t.HintConfidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&t.ConfidenceScore, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Outflow returns the spent amount, zero for income deposits and refunds
func (t Transaction) Outflow() int64 {
	if t.IsIncomeDeposit || t.Amount <= 0 {
		return 0
	}
	return t.Amount
}

// Inflow returns the received amount for income deposits
func (t Transaction) Inflow() int64 {
	if !t.IsIncomeDeposit {
		return 0
	}
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// WithCategory returns a copy carrying the resolved category; identity is preserved
func (t Transaction) WithCategory(c Category, confidence float64) Transaction {
	t.ResolvedCategory = c
	t.ConfidenceScore = confidence
	return t
}

// MonthKey returns the calendar month (UTC) the transaction falls into
func (t Transaction) MonthKey() time.Time {
	d := t.Date.UTC()
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func requireUUID(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return ErrMissingTwin
	}
	return nil
}
