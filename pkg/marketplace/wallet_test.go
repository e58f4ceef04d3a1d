package marketplace

import (
	"context"
	"errors"
	"testing"
)

func TestCreditAppendsPositiveEntry(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")

	err := service.Credit(context.Background(), installerID, mustPositiveAmount(test, 5000), EntryTopUp, mustIdempotencyKey(test, "topup-1"), mustMetadata(test, "{}"))
	if err != nil {
		test.Fatalf("credit: %v", err)
	}

	if len(store.entries) != 1 {
		test.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.Type != EntryTopUp {
		test.Fatalf("expected top_up entry, got %s", entry.Type)
	}
	if entry.AmountCents != 5000 {
		test.Fatalf("expected +5000, got %d", entry.AmountCents)
	}
	balance, err := service.WalletBalance(context.Background(), installerID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 5000 {
		test.Fatalf("expected balance 5000, got %d", balance.Int64())
	}
}

func TestCreditRejectsDebitEntryType(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")

	err := service.Credit(context.Background(), installerID, mustPositiveAmount(test, 100), EntryLeadPurchase, mustIdempotencyKey(test, "bad-type"), mustMetadata(test, "{}"))
	if !errors.Is(err, ErrInvalidEntryType) {
		test.Fatalf("expected ErrInvalidEntryType, got %v", err)
	}
	if len(store.entries) != 0 {
		test.Fatalf("expected no entries, got %d", len(store.entries))
	}
}

func TestDebitAppendsNegativeEntry(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")
	seedCredit(test, store, installerID, 5000, "seed")

	err := service.Debit(context.Background(), installerID, mustPositiveAmount(test, 4000), EntryLeadPurchase, mustIdempotencyKey(test, "debit-1"), mustMetadata(test, "{}"))
	if err != nil {
		test.Fatalf("debit: %v", err)
	}

	if len(store.entries) != 2 {
		test.Fatalf("expected 2 entries, got %d", len(store.entries))
	}
	debit := store.entries[1]
	if debit.AmountCents != -4000 {
		test.Fatalf("expected -4000, got %d", debit.AmountCents)
	}
	balance, err := service.WalletBalance(context.Background(), installerID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 1000 {
		test.Fatalf("expected balance 1000, got %d", balance.Int64())
	}
}

func TestDebitInsufficientFundsLeavesLedgerUntouched(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")
	seedCredit(test, store, installerID, 500, "seed")

	err := service.Debit(context.Background(), installerID, mustPositiveAmount(test, 4000), EntryLeadPurchase, mustIdempotencyKey(test, "debit-low"), mustMetadata(test, "{}"))
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(store.entries) != 1 {
		test.Fatalf("expected the seed entry only, got %d", len(store.entries))
	}
}

func TestDebitExactBalanceSucceeds(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")
	seedCredit(test, store, installerID, 4000, "seed")

	err := service.Debit(context.Background(), installerID, mustPositiveAmount(test, 4000), EntryLeadPurchase, mustIdempotencyKey(test, "debit-exact"), mustMetadata(test, "{}"))
	if err != nil {
		test.Fatalf("debit: %v", err)
	}
	balance, err := service.WalletBalance(context.Background(), installerID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 0 {
		test.Fatalf("expected zero balance, got %d", balance.Int64())
	}
}

func TestCreditDuplicateIdempotencyKeyRejected(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")
	key := mustIdempotencyKey(test, "same-key")
	metadata := mustMetadata(test, "{}")

	if err := service.Credit(context.Background(), installerID, mustPositiveAmount(test, 1000), EntryTopUp, key, metadata); err != nil {
		test.Fatalf("first credit: %v", err)
	}
	err := service.Credit(context.Background(), installerID, mustPositiveAmount(test, 1000), EntryTopUp, key, metadata)
	if !errors.Is(err, ErrDuplicateIdempotencyKey) {
		test.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}
	if len(store.entries) != 1 {
		test.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
}

func TestWalletEntriesNewestFirst(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	installerID := mustInstallerID(test, "inst-1")
	accountID, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("account: %v", err)
	}
	for i, created := range []int64{10, 20, 30} {
		entry := WalletEntry{
			AccountID:      accountID,
			Type:           EntryTopUp,
			AmountCents:    100,
			IdempotencyKey: mustIdempotencyKey(test, "k"+string(rune('a'+i))).String(),
			MetadataJSON:   "{}",
			CreatedUnixUTC: created,
		}
		if err := store.InsertWalletEntry(context.Background(), entry); err != nil {
			test.Fatalf("insert: %v", err)
		}
	}

	entries, err := service.WalletEntries(context.Background(), installerID, 0, 2)
	if err != nil {
		test.Fatalf("wallet entries: %v", err)
	}
	if len(entries) != 2 {
		test.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CreatedUnixUTC != 30 || entries[1].CreatedUnixUTC != 20 {
		test.Fatalf("expected newest first, got %d then %d", entries[0].CreatedUnixUTC, entries[1].CreatedUnixUTC)
	}
}
