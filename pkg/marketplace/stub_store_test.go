package marketplace

import (
	"context"
	"fmt"
	"sort"
	"testing"
)

// stubStore is an in-memory Store for service tests. WithTx runs the callback
// against the same store without rollback; tests that assert no-mutation rely
// on operations failing before their first write.
type stubStore struct {
	accountSeq  int
	accounts    map[InstallerID]string
	entries     []WalletEntry
	idempotency map[string]struct{}

	vouchers map[InstallerID]VoucherGrant

	bookingSeq int
	bookings   map[BookingID]Booking
	leads      map[BookingID]Lead
	purchases  map[string]LeadPurchase

	proposalSeq int
	proposals   map[ProposalID]ScheduleProposal

	assignments map[BookingID]JobAssignment
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		accounts:    make(map[InstallerID]string),
		idempotency: make(map[string]struct{}),
		vouchers:    make(map[InstallerID]VoucherGrant),
		bookings:    make(map[BookingID]Booking),
		leads:       make(map[BookingID]Lead),
		purchases:   make(map[string]LeadPurchase),
		proposals:   make(map[ProposalID]ScheduleProposal),
		assignments: make(map[BookingID]JobAssignment),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) GetOrCreateWalletAccountID(ctx context.Context, installerID InstallerID) (string, error) {
	if accountID, ok := store.accounts[installerID]; ok {
		return accountID, nil
	}
	store.accountSeq++
	accountID := fmt.Sprintf("acct-%d", store.accountSeq)
	store.accounts[installerID] = accountID
	return accountID, nil
}

func (store *stubStore) GetWalletAccountIDForUpdate(ctx context.Context, installerID InstallerID) (string, error) {
	return store.GetOrCreateWalletAccountID(ctx, installerID)
}

func (store *stubStore) SumWalletEntries(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	for _, entry := range store.entries {
		if entry.AccountID == accountID {
			sum += entry.AmountCents
		}
	}
	return sum, nil
}

func (store *stubStore) InsertWalletEntry(ctx context.Context, entry WalletEntry) error {
	key := entry.AccountID + "|" + entry.IdempotencyKey
	if _, exists := store.idempotency[key]; exists {
		return ErrDuplicateIdempotencyKey
	}
	store.idempotency[key] = struct{}{}
	entry.EntryID = fmt.Sprintf("entry-%d", len(store.entries)+1)
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubStore) ListWalletEntries(ctx context.Context, accountID string, beforeUnixUTC int64, limit int) ([]WalletEntry, error) {
	var out []WalletEntry
	for _, entry := range store.entries {
		if entry.AccountID != accountID {
			continue
		}
		if beforeUnixUTC > 0 && entry.CreatedUnixUTC >= beforeUnixUTC {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedUnixUTC > out[j].CreatedUnixUTC })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (store *stubStore) CreateVoucherGrant(ctx context.Context, grant VoucherGrant) error {
	store.vouchers[grant.InstallerID] = grant
	return nil
}

func (store *stubStore) GetVoucherGrant(ctx context.Context, installerID InstallerID) (VoucherGrant, bool, error) {
	grant, ok := store.vouchers[installerID]
	return grant, ok, nil
}

func (store *stubStore) GetVoucherGrantForUpdate(ctx context.Context, installerID InstallerID) (VoucherGrant, bool, error) {
	return store.GetVoucherGrant(ctx, installerID)
}

func (store *stubStore) UpdateVoucherStatus(ctx context.Context, installerID InstallerID, from, to VoucherStatus) error {
	grant, ok := store.vouchers[installerID]
	if !ok || grant.Status != from {
		return ErrVoucherAlreadyConsumed
	}
	grant.Status = to
	store.vouchers[installerID] = grant
	return nil
}

func (store *stubStore) CreateBooking(ctx context.Context, booking Booking) (BookingID, error) {
	if booking.BookingID.String() == "" {
		store.bookingSeq++
		bookingID, err := NewBookingID(fmt.Sprintf("booking-%d", store.bookingSeq))
		if err != nil {
			return BookingID{}, err
		}
		booking.BookingID = bookingID
	}
	store.bookings[booking.BookingID] = booking
	return booking.BookingID, nil
}

func (store *stubStore) GetBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return booking, nil
}

func (store *stubStore) UpdateBookingStatus(ctx context.Context, bookingID BookingID, to BookingStatus, atUnixUTC int64) error {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	booking.Status = to
	booking.UpdatedUnixUTC = atUnixUTC
	store.bookings[bookingID] = booking
	return nil
}

func (store *stubStore) CreateLead(ctx context.Context, lead Lead) error {
	store.leads[lead.BookingID] = lead
	return nil
}

func (store *stubStore) GetLead(ctx context.Context, bookingID BookingID) (Lead, bool, error) {
	lead, ok := store.leads[bookingID]
	return lead, ok, nil
}

func (store *stubStore) ListOpenLeads(ctx context.Context, limit int) ([]OpenLead, error) {
	var out []OpenLead
	for bookingID, lead := range store.leads {
		booking, ok := store.bookings[bookingID]
		if !ok {
			continue
		}
		switch booking.Status {
		case BookingOpen, BookingAssigned, BookingConfirmed:
		default:
			continue
		}
		out = append(out, OpenLead{
			BookingID:         bookingID,
			FeeCents:          lead.FeeCents,
			ServiceType:       booking.ServiceType,
			TVSize:            booking.TVSize,
			PreferredDate:     booking.PreferredDate,
			PreferredTimeSlot: booking.PreferredTimeSlot,
			CreatedUnixUTC:    lead.CreatedUnixUTC,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID.String() < out[j].BookingID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func purchaseKey(bookingID BookingID, installerID InstallerID) string {
	return bookingID.String() + "|" + installerID.String()
}

func (store *stubStore) CreateLeadPurchase(ctx context.Context, purchase LeadPurchase) error {
	key := purchaseKey(purchase.BookingID, purchase.InstallerID)
	if _, exists := store.purchases[key]; exists {
		return ErrAlreadyPurchased
	}
	store.purchases[key] = purchase
	return nil
}

func (store *stubStore) HasLeadPurchase(ctx context.Context, bookingID BookingID, installerID InstallerID) (bool, error) {
	_, ok := store.purchases[purchaseKey(bookingID, installerID)]
	return ok, nil
}

func (store *stubStore) CreateProposal(ctx context.Context, proposal ScheduleProposal) (ProposalID, error) {
	if proposal.ProposalID.String() == "" {
		store.proposalSeq++
		proposalID, err := NewProposalID(fmt.Sprintf("proposal-%d", store.proposalSeq))
		if err != nil {
			return ProposalID{}, err
		}
		proposal.ProposalID = proposalID
	}
	store.proposals[proposal.ProposalID] = proposal
	return proposal.ProposalID, nil
}

func (store *stubStore) GetProposalForUpdate(ctx context.Context, proposalID ProposalID) (ScheduleProposal, error) {
	proposal, ok := store.proposals[proposalID]
	if !ok {
		return ScheduleProposal{}, ErrProposalNotFound
	}
	return proposal, nil
}

func (store *stubStore) ListProposals(ctx context.Context, bookingID BookingID) ([]ScheduleProposal, error) {
	var out []ScheduleProposal
	for _, proposal := range store.proposals {
		if proposal.BookingID == bookingID {
			out = append(out, proposal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProposalID.String() < out[j].ProposalID.String() })
	return out, nil
}

func (store *stubStore) UpdateProposalStatus(ctx context.Context, proposalID ProposalID, from, to ProposalStatus) error {
	proposal, ok := store.proposals[proposalID]
	if !ok || proposal.Status != from {
		return ErrProposalNotPending
	}
	proposal.Status = to
	store.proposals[proposalID] = proposal
	return nil
}

func (store *stubStore) SupersedePendingProposals(ctx context.Context, bookingID BookingID, except ProposalID) error {
	for proposalID, proposal := range store.proposals {
		if proposal.BookingID == bookingID && proposal.Status == ProposalPending && proposalID != except {
			proposal.Status = ProposalSuperseded
			store.proposals[proposalID] = proposal
		}
	}
	return nil
}

func (store *stubStore) SupersedeInstallerPending(ctx context.Context, bookingID BookingID, installerID InstallerID) error {
	for proposalID, proposal := range store.proposals {
		if proposal.BookingID == bookingID && proposal.InstallerID == installerID && proposal.Status == ProposalPending {
			proposal.Status = ProposalSuperseded
			store.proposals[proposalID] = proposal
		}
	}
	return nil
}

func (store *stubStore) FindAcceptedProposal(ctx context.Context, bookingID BookingID) (ScheduleProposal, bool, error) {
	for _, proposal := range store.proposals {
		if proposal.BookingID == bookingID && proposal.Status == ProposalAccepted {
			return proposal, true, nil
		}
	}
	return ScheduleProposal{}, false, nil
}

func (store *stubStore) UpsertJobAssignment(ctx context.Context, assignment JobAssignment) error {
	store.assignments[assignment.BookingID] = assignment
	return nil
}

func (store *stubStore) GetJobAssignment(ctx context.Context, bookingID BookingID) (JobAssignment, bool, error) {
	assignment, ok := store.assignments[bookingID]
	return assignment, ok, nil
}

func (store *stubStore) UpdateAssignmentStatus(ctx context.Context, bookingID BookingID, from, to AssignmentStatus, atUnixUTC int64) error {
	assignment, ok := store.assignments[bookingID]
	if !ok {
		return ErrAssignmentNotFound
	}
	if assignment.Status != from {
		return ErrAssignmentConflict
	}
	assignment.Status = to
	switch to {
	case AssignmentAccepted:
		assignment.AcceptedUnixUTC = atUnixUTC
	case AssignmentInProgress:
		assignment.StartedUnixUTC = atUnixUTC
	case AssignmentCompleted:
		assignment.CompletedUnixUTC = atUnixUTC
	}
	store.assignments[bookingID] = assignment
	return nil
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 100 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustInstallerID(test *testing.T, raw string) InstallerID {
	test.Helper()
	value, err := NewInstallerID(raw)
	if err != nil {
		test.Fatalf("installer id: %v", err)
	}
	return value
}

func mustBookingID(test *testing.T, raw string) BookingID {
	test.Helper()
	value, err := NewBookingID(raw)
	if err != nil {
		test.Fatalf("booking id: %v", err)
	}
	return value
}

func mustProposalID(test *testing.T, raw string) ProposalID {
	test.Helper()
	value, err := NewProposalID(raw)
	if err != nil {
		test.Fatalf("proposal id: %v", err)
	}
	return value
}

func mustIdempotencyKey(test *testing.T, raw string) IdempotencyKey {
	test.Helper()
	value, err := NewIdempotencyKey(raw)
	if err != nil {
		test.Fatalf("idempotency key: %v", err)
	}
	return value
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	value, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return value
}

func mustAmountCents(test *testing.T, raw int64) AmountCents {
	test.Helper()
	value, err := NewAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return value
}

func mustPositiveAmount(test *testing.T, raw int64) AmountCents {
	test.Helper()
	value, err := NewPositiveAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return value
}

func mustScheduleDate(test *testing.T, raw string) ScheduleDate {
	test.Helper()
	value, err := NewScheduleDate(raw)
	if err != nil {
		test.Fatalf("schedule date: %v", err)
	}
	return value
}

// seedBooking places an open booking with a purchasable lead into the store
// and returns its id.
func seedBooking(test *testing.T, store *stubStore, feeCents int64) BookingID {
	test.Helper()
	bookingID, err := store.CreateBooking(context.Background(), Booking{
		Contact: CustomerContact{
			Name:    "Dana Wall",
			Phone:   "555-0101",
			Address: "12 Mount St",
		},
		ServiceType:       "wall_mount",
		TVSize:            "65",
		PriceCents:        12900,
		PreferredDate:     "2026-09-10",
		PreferredTimeSlot: "morning",
		Status:            BookingOpen,
		CreatedUnixUTC:    100,
		UpdatedUnixUTC:    100,
	})
	if err != nil {
		test.Fatalf("seed booking: %v", err)
	}
	if err := store.CreateLead(context.Background(), Lead{
		BookingID:      bookingID,
		FeeCents:       mustAmountCents(test, feeCents),
		CreatedUnixUTC: 100,
	}); err != nil {
		test.Fatalf("seed lead: %v", err)
	}
	return bookingID
}

// seedCredit tops up an installer wallet directly through the store.
func seedCredit(test *testing.T, store *stubStore, installerID InstallerID, amountCents int64, key string) {
	test.Helper()
	accountID, err := store.GetOrCreateWalletAccountID(context.Background(), installerID)
	if err != nil {
		test.Fatalf("seed account: %v", err)
	}
	if err := store.InsertWalletEntry(context.Background(), WalletEntry{
		AccountID:      accountID,
		Type:           EntryTopUp,
		AmountCents:    amountCents,
		IdempotencyKey: key,
		MetadataJSON:   "{}",
		CreatedUnixUTC: 100,
	}); err != nil {
		test.Fatalf("seed credit: %v", err)
	}
}

func seedVoucher(test *testing.T, store *stubStore, installerID InstallerID, amountCents int64, status VoucherStatus) {
	test.Helper()
	store.vouchers[installerID] = VoucherGrant{
		InstallerID: installerID,
		AmountCents: mustAmountCents(test, amountCents),
		Status:      status,
	}
}

// seedPurchase grants lead access without touching the wallet.
func seedPurchase(test *testing.T, store *stubStore, bookingID BookingID, installerID InstallerID) {
	test.Helper()
	store.purchases[purchaseKey(bookingID, installerID)] = LeadPurchase{
		BookingID:      bookingID,
		InstallerID:    installerID,
		CreatedUnixUTC: 100,
	}
}
