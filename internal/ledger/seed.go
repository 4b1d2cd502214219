package ledger

import (
	"context"
	"errors"

	"github.com/example/stableflow/internal/money"
)

// SystemAccounts are the platform-owned accounts provisioned at
// bootstrap: fee revenue and cash assets per currency, plus gas expense
// accounts for the on-chain currencies.
var SystemAccounts = []CreateAccountInput{
	{ID: "platform:fees:USD", Name: "Platform Fees (USD)", Type: Revenue, Currency: money.USD},
	{ID: "platform:fees:EUR", Name: "Platform Fees (EUR)", Type: Revenue, Currency: money.EUR},
	{ID: "platform:fees:USDC", Name: "Platform Fees (USDC)", Type: Revenue, Currency: money.USDC},
	{ID: "platform:fees:USDT", Name: "Platform Fees (USDT)", Type: Revenue, Currency: money.USDT},
	{ID: "platform:cash:USD", Name: "Platform Cash (USD)", Type: Asset, Currency: money.USD},
	{ID: "platform:cash:EUR", Name: "Platform Cash (EUR)", Type: Asset, Currency: money.EUR},
	{ID: "platform:cash:USDC", Name: "Platform Cash (USDC)", Type: Asset, Currency: money.USDC},
	{ID: "platform:cash:USDT", Name: "Platform Cash (USDT)", Type: Asset, Currency: money.USDT},
	{ID: "platform:gas:USD", Name: "Platform Gas Fees (USD)", Type: Expense, Currency: money.USD},
	{ID: "platform:gas:USDC", Name: "Platform Gas Fees (USDC)", Type: Expense, Currency: money.USDC},
	{ID: "platform:gas:USDT", Name: "Platform Gas Fees (USDT)", Type: Expense, Currency: money.USDT},
}

// SeedSystemAccounts provisions the system accounts idempotently: an
// account that already exists is left untouched.
func (s *Service) SeedSystemAccounts(ctx context.Context) error {
	for _, input := range SystemAccounts {
		if _, err := s.CreateAccount(ctx, input); err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return err
		}
	}
	return nil
}
