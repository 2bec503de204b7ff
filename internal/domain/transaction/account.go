package transaction

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// AccountType classifies a linked account
type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeInvestment AccountType = "investment"
)

// Account is a linked bank account with its current balance in minor units
type Account struct {
	ID      string      `json:"id"`
	TwinID  uuid.UUID   `json:"twin_id"`
	Name    string      `json:"name"`
	Type    AccountType `json:"type"`
	Subtype string      `json:"subtype,omitempty"`
	Balance int64       `json:"balance"`
}

func (a Account) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required.Error(ErrInvalidAccountID.Error())),
		validation.Field(&a.Type, validation.Required, validation.In(
			AccountTypeDepository, AccountTypeCredit, AccountTypeLoan, AccountTypeInvestment,
		)),
	)
}

// IsLiquid reports whether the balance counts toward runway
func (a Account) IsLiquid() bool {
	return a.Type == AccountTypeDepository
}

// LiquidBalance sums positive depository balances
func LiquidBalance(accounts []Account) int64 {
	var total int64
	for _, a := range accounts {
		if a.IsLiquid() && a.Balance > 0 {
			total += a.Balance
		}
	}
	return total
}
