package marketplace

import (
	"context"
	"fmt"
)

// WalletBalance returns the installer's spendable balance, derived from the
// sum of ledger entries. Never read from a stored counter.
func (service *Service) WalletBalance(ctx context.Context, installerID InstallerID) (AmountCents, error) {
	accountID, err := service.store.GetOrCreateWalletAccountID(ctx, installerID)
	if err != nil {
		return 0, err
	}
	sum, err := service.store.SumWalletEntries(ctx, accountID)
	if err != nil {
		return 0, err
	}
	balance, err := NewAmountCents(sum)
	if err != nil {
		return 0, WrapError("wallet", "balance", "negative_balance", err)
	}
	return balance, nil
}

// Credit appends a positive wallet entry (top-up or refund). Always succeeds
// for a valid amount; duplicates are rejected by the idempotency key.
func (service *Service) Credit(ctx context.Context, installerID InstallerID, amount AmountCents, entryType EntryType, idempotencyKey IdempotencyKey, metadata MetadataJSON) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if entryType != EntryTopUp && entryType != EntryRefund {
			return fmt.Errorf("%w: credit entries must be top_up or refund", ErrInvalidEntryType)
		}
		if amount.Int64() <= 0 {
			return fmt.Errorf("%w: credit must be greater than zero", ErrInvalidAmountCents)
		}
		accountID, err := transactionStore.GetOrCreateWalletAccountID(ctx, installerID)
		if err != nil {
			return err
		}
		return transactionStore.InsertWalletEntry(ctx, WalletEntry{
			AccountID:      accountID,
			Type:           entryType,
			AmountCents:    amount.Int64(),
			IdempotencyKey: idempotencyKey.String(),
			MetadataJSON:   metadata.String(),
			CreatedUnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationCredit,
		InstallerID: installerID,
		Amount:      amount,
		Error:       operationError,
	})
	return operationError
}

// Debit atomically decrements the installer's balance. Fails with
// ErrInsufficientFunds when the amount exceeds the balance; the balance
// check and the entry insert share one transaction and a row lock on the
// wallet account, so concurrent debits are serialized per installer.
func (service *Service) Debit(ctx context.Context, installerID InstallerID, amount AmountCents, entryType EntryType, idempotencyKey IdempotencyKey, metadata MetadataJSON) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		return service.debitTx(ctx, transactionStore, installerID, amount, entryType, idempotencyKey, metadata)
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationDebit,
		InstallerID: installerID,
		Amount:      amount,
		Error:       operationError,
	})
	return operationError
}

// debitTx runs the balance-check-then-append step inside an existing
// transaction. Callers must pass the transactional store.
func (service *Service) debitTx(ctx context.Context, transactionStore Store, installerID InstallerID, amount AmountCents, entryType EntryType, idempotencyKey IdempotencyKey, metadata MetadataJSON) error {
	if amount.Int64() <= 0 {
		return fmt.Errorf("%w: debit must be greater than zero", ErrInvalidAmountCents)
	}
	accountID, err := transactionStore.GetWalletAccountIDForUpdate(ctx, installerID)
	if err != nil {
		return err
	}
	sum, err := transactionStore.SumWalletEntries(ctx, accountID)
	if err != nil {
		return err
	}
	if sum < amount.Int64() {
		return ErrInsufficientFunds
	}
	return transactionStore.InsertWalletEntry(ctx, WalletEntry{
		AccountID:      accountID,
		Type:           entryType,
		AmountCents:    -amount.Int64(),
		IdempotencyKey: idempotencyKey.String(),
		MetadataJSON:   metadata.String(),
		CreatedUnixUTC: service.nowFn(),
	})
}

// WalletEntries lists an installer's ledger lines before a cutoff, newest first.
func (service *Service) WalletEntries(ctx context.Context, installerID InstallerID, beforeUnixUTC int64, limit int) ([]WalletEntry, error) {
	accountID, err := service.store.GetOrCreateWalletAccountID(ctx, installerID)
	if err != nil {
		return nil, err
	}
	return service.store.ListWalletEntries(ctx, accountID, beforeUnixUTC, limit)
}
