package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

func newTestStore(test *testing.T) *Store {
	test.Helper()
	databasePath := filepath.Join(test.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		test.Fatalf("auto migrate: %v", err)
	}
	return New(db)
}

func mustInstaller(test *testing.T, raw string) marketplace.InstallerID {
	test.Helper()
	installerID, err := marketplace.NewInstallerID(raw)
	if err != nil {
		test.Fatalf("installer id: %v", err)
	}
	return installerID
}

func createTestBooking(test *testing.T, store *Store) marketplace.BookingID {
	test.Helper()
	bookingID, err := store.CreateBooking(context.Background(), marketplace.Booking{
		Contact:        marketplace.CustomerContact{Name: "Dana Wall", Phone: "555-0101"},
		ServiceType:    "wall_mount",
		TVSize:         "65",
		PriceCents:     0,
		Status:         marketplace.BookingOpen,
		CreatedUnixUTC: 100,
		UpdatedUnixUTC: 100,
	})
	if err != nil {
		test.Fatalf("create booking: %v", err)
	}
	return bookingID
}

func TestWalletEntryDuplicateIdempotencyKey(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	installerID := mustInstaller(test, "inst-1")
	accountID, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("account: %v", err)
	}
	entry := marketplace.WalletEntry{
		AccountID:      accountID,
		Type:           marketplace.EntryTopUp,
		AmountCents:    1000,
		IdempotencyKey: "dup-key",
		MetadataJSON:   "{}",
		CreatedUnixUTC: 100,
	}
	if err := store.InsertWalletEntry(context.Background(), entry); err != nil {
		test.Fatalf("first insert: %v", err)
	}
	err = store.InsertWalletEntry(context.Background(), entry)
	if !errors.Is(err, marketplace.ErrDuplicateIdempotencyKey) {
		test.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}
	sum, err := store.SumWalletEntries(context.Background(), accountID)
	if err != nil {
		test.Fatalf("sum: %v", err)
	}
	if sum != 1000 {
		test.Fatalf("expected 1000, got %d", sum)
	}
}

func TestGetOrCreateWalletAccountIDStable(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	installerID := mustInstaller(test, "inst-1")
	first, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("first: %v", err)
	}
	second, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("second: %v", err)
	}
	if first != second {
		test.Fatalf("expected stable account id, got %q then %q", first, second)
	}
}

func TestVoucherStatusCompareAndSwap(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	installerID := mustInstaller(test, "inst-1")
	voucher, err := marketplace.NewAmountCents(4000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	if err := store.CreateVoucherGrant(context.Background(), marketplace.VoucherGrant{
		InstallerID: installerID,
		AmountCents: voucher,
		Status:      marketplace.VoucherEligible,
	}); err != nil {
		test.Fatalf("create grant: %v", err)
	}
	if err := store.UpdateVoucherStatus(context.Background(), installerID, marketplace.VoucherEligible, marketplace.VoucherConsumed); err != nil {
		test.Fatalf("first swap: %v", err)
	}
	err = store.UpdateVoucherStatus(context.Background(), installerID, marketplace.VoucherEligible, marketplace.VoucherConsumed)
	if !errors.Is(err, marketplace.ErrVoucherAlreadyConsumed) {
		test.Fatalf("expected ErrVoucherAlreadyConsumed, got %v", err)
	}
}

func TestLeadPurchaseCompositeKeyGuard(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	bookingID := createTestBooking(test, store)
	installerID := mustInstaller(test, "inst-1")
	purchase := marketplace.LeadPurchase{
		BookingID:      bookingID,
		InstallerID:    installerID,
		CreatedUnixUTC: 100,
	}
	if err := store.CreateLeadPurchase(context.Background(), purchase); err != nil {
		test.Fatalf("first purchase: %v", err)
	}
	err := store.CreateLeadPurchase(context.Background(), purchase)
	if !errors.Is(err, marketplace.ErrAlreadyPurchased) {
		test.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
	other := marketplace.LeadPurchase{
		BookingID:      bookingID,
		InstallerID:    mustInstaller(test, "inst-2"),
		CreatedUnixUTC: 100,
	}
	if err := store.CreateLeadPurchase(context.Background(), other); err != nil {
		test.Fatalf("other installer purchase: %v", err)
	}
}

func TestProposalStatusCompareAndSwap(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	bookingID := createTestBooking(test, store)
	date, err := marketplace.NewScheduleDate("2026-09-12")
	if err != nil {
		test.Fatalf("date: %v", err)
	}
	proposalID, err := store.CreateProposal(context.Background(), marketplace.ScheduleProposal{
		BookingID:      bookingID,
		ProposerRole:   marketplace.ProposerInstaller,
		InstallerID:    mustInstaller(test, "inst-1"),
		Date:           date,
		Status:         marketplace.ProposalPending,
		CreatedUnixUTC: 100,
	})
	if err != nil {
		test.Fatalf("create proposal: %v", err)
	}
	if err := store.UpdateProposalStatus(context.Background(), proposalID, marketplace.ProposalPending, marketplace.ProposalAccepted); err != nil {
		test.Fatalf("first swap: %v", err)
	}
	err = store.UpdateProposalStatus(context.Background(), proposalID, marketplace.ProposalPending, marketplace.ProposalAccepted)
	if !errors.Is(err, marketplace.ErrProposalNotPending) {
		test.Fatalf("expected ErrProposalNotPending, got %v", err)
	}
}

func TestUpsertJobAssignmentRepoints(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	bookingID := createTestBooking(test, store)
	firstProposal, err := marketplace.NewProposalID("prop-1")
	if err != nil {
		test.Fatalf("proposal id: %v", err)
	}
	secondProposal, err := marketplace.NewProposalID("prop-2")
	if err != nil {
		test.Fatalf("proposal id: %v", err)
	}
	assignment := marketplace.JobAssignment{
		BookingID:       bookingID,
		InstallerID:     mustInstaller(test, "inst-1"),
		ProposalID:      firstProposal,
		Status:          marketplace.AssignmentAccepted,
		AssignedUnixUTC: 100,
		AcceptedUnixUTC: 100,
	}
	if err := store.UpsertJobAssignment(context.Background(), assignment); err != nil {
		test.Fatalf("first upsert: %v", err)
	}
	assignment.ProposalID = secondProposal
	assignment.InstallerID = mustInstaller(test, "inst-2")
	if err := store.UpsertJobAssignment(context.Background(), assignment); err != nil {
		test.Fatalf("second upsert: %v", err)
	}
	stored, found, err := store.GetJobAssignment(context.Background(), bookingID)
	if err != nil || !found {
		test.Fatalf("get assignment: %v %v", found, err)
	}
	if stored.ProposalID != secondProposal {
		test.Fatalf("expected repointed proposal, got %s", stored.ProposalID.String())
	}
	if stored.InstallerID.String() != "inst-2" {
		test.Fatalf("expected repointed installer, got %s", stored.InstallerID.String())
	}
}

func TestPurchaseLeadVoucherRollsBackWithFailedDebit(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	service, err := marketplace.NewService(store, func() int64 { return 100 })
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	bookingID := createTestBooking(test, store)
	fee, err := marketplace.NewAmountCents(4000)
	if err != nil {
		test.Fatalf("fee: %v", err)
	}
	if err := store.CreateLead(context.Background(), marketplace.Lead{
		BookingID:      bookingID,
		FeeCents:       fee,
		CreatedUnixUTC: 100,
	}); err != nil {
		test.Fatalf("create lead: %v", err)
	}
	installerID := mustInstaller(test, "inst-1")
	voucher, err := marketplace.NewAmountCents(2000)
	if err != nil {
		test.Fatalf("voucher: %v", err)
	}
	if err := store.CreateVoucherGrant(context.Background(), marketplace.VoucherGrant{
		InstallerID: installerID,
		AmountCents: voucher,
		Status:      marketplace.VoucherEligible,
	}); err != nil {
		test.Fatalf("create grant: %v", err)
	}
	credit, err := marketplace.NewAmountCents(1000)
	if err != nil {
		test.Fatalf("credit: %v", err)
	}
	key, err := marketplace.NewIdempotencyKey("seed-topup")
	if err != nil {
		test.Fatalf("key: %v", err)
	}
	metadata, err := marketplace.NewMetadataJSON("")
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	if err := service.Credit(context.Background(), installerID, credit, marketplace.EntryTopUp, key, metadata); err != nil {
		test.Fatalf("seed credit: %v", err)
	}

	// Voucher covers 2000 of the 4000 fee; the remaining 2000 exceeds the
	// 1000 balance, so the whole purchase must unwind.
	_, err = service.PurchaseLead(context.Background(), installerID, bookingID)
	if !errors.Is(err, marketplace.ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	grant, found, err := store.GetVoucherGrant(context.Background(), installerID)
	if err != nil || !found {
		test.Fatalf("get grant: %v %v", found, err)
	}
	if grant.Status != marketplace.VoucherEligible {
		test.Fatalf("expected voucher still eligible, got %s", grant.Status)
	}
	accountID, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("account: %v", err)
	}
	sum, err := store.SumWalletEntries(context.Background(), accountID)
	if err != nil {
		test.Fatalf("sum: %v", err)
	}
	if sum != 1000 {
		test.Fatalf("expected untouched balance 1000, got %d", sum)
	}
	purchased, err := store.HasLeadPurchase(context.Background(), bookingID, installerID)
	if err != nil {
		test.Fatalf("has purchase: %v", err)
	}
	if purchased {
		test.Fatalf("expected no purchase record after failed debit")
	}
}

func TestWithTxRollsBackOnError(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)
	installerID := mustInstaller(test, "inst-1")
	sentinel := errors.New("abort")

	err := store.WithTx(context.Background(), func(ctx context.Context, txStore marketplace.Store) error {
		accountID, err := txStore.GetOrCreateWalletAccountID(ctx, installerID)
		if err != nil {
			return err
		}
		if err := txStore.InsertWalletEntry(ctx, marketplace.WalletEntry{
			AccountID:      accountID,
			Type:           marketplace.EntryTopUp,
			AmountCents:    1000,
			IdempotencyKey: "rollback-key",
			MetadataJSON:   "{}",
			CreatedUnixUTC: 100,
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		test.Fatalf("expected sentinel, got %v", err)
	}

	accountID, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("account: %v", err)
	}
	sum, err := store.SumWalletEntries(context.Background(), accountID)
	if err != nil {
		test.Fatalf("sum: %v", err)
	}
	if sum != 0 {
		test.Fatalf("expected rolled back ledger, got %d", sum)
	}
}
