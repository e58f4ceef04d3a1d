package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AmountCents is an integer currency amount in cents.
type AmountCents int64

// InstallerID identifies a registered installer.
type InstallerID struct {
	value string
}

// BookingID identifies a customer booking.
type BookingID struct {
	value string
}

// ProposalID identifies a schedule proposal.
type ProposalID struct {
	value string
}

// IdempotencyKey scopes duplicate detection for wallet entries.
type IdempotencyKey struct {
	value string
}

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// NewInstallerID validates and normalizes an installer id.
func NewInstallerID(raw string) (InstallerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return InstallerID{}, fmt.Errorf("%w: empty value", ErrInvalidInstallerID)
	}
	return InstallerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id InstallerID) String() string {
	return id.value
}

// NewBookingID validates and normalizes a booking id.
func NewBookingID(raw string) (BookingID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BookingID{}, fmt.Errorf("%w: empty value", ErrInvalidBookingID)
	}
	return BookingID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookingID) String() string {
	return id.value
}

// NewProposalID validates and normalizes a proposal id.
func NewProposalID(raw string) (ProposalID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ProposalID{}, fmt.Errorf("%w: empty value", ErrInvalidProposalID)
	}
	return ProposalID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ProposalID) String() string {
	return id.value
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// NewAmountCents validates a non-negative amount.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// NewPositiveAmountCents validates a strictly positive amount.
func NewPositiveAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// ScheduleDate is a calendar date (no time component) for an installation.
type ScheduleDate struct {
	value string
}

const scheduleDateLayout = "2006-01-02"

// NewScheduleDate validates an ISO calendar date.
func NewScheduleDate(raw string) (ScheduleDate, error) {
	trimmed := strings.TrimSpace(raw)
	if _, err := time.Parse(scheduleDateLayout, trimmed); err != nil {
		return ScheduleDate{}, fmt.Errorf("%w: expected YYYY-MM-DD", ErrInvalidScheduleDate)
	}
	return ScheduleDate{value: trimmed}, nil
}

// String returns the normalized date.
func (date ScheduleDate) String() string {
	return date.value
}

// BookingStatus is the coarse lifecycle state of a booking.
type BookingStatus string

const (
	BookingOpen       BookingStatus = "open"
	BookingAssigned   BookingStatus = "assigned"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// ParseBookingStatus validates a raw booking status.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(raw) {
	case BookingOpen, BookingAssigned, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled:
		return BookingStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
}

// String returns the raw status value.
func (status BookingStatus) String() string {
	return string(status)
}

// ProposalStatus is the lifecycle state of a schedule proposal.
// pending is the only non-terminal state.
type ProposalStatus string

const (
	ProposalPending    ProposalStatus = "pending"
	ProposalAccepted   ProposalStatus = "accepted"
	ProposalRejected   ProposalStatus = "rejected"
	ProposalSuperseded ProposalStatus = "superseded"
)

// ParseProposalStatus validates a raw proposal status.
func ParseProposalStatus(raw string) (ProposalStatus, error) {
	switch ProposalStatus(raw) {
	case ProposalPending, ProposalAccepted, ProposalRejected, ProposalSuperseded:
		return ProposalStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProposalStatus, raw)
}

// String returns the raw status value.
func (status ProposalStatus) String() string {
	return string(status)
}

// ProposerRole identifies which party submitted a proposal.
type ProposerRole string

const (
	ProposerInstaller ProposerRole = "installer"
	ProposerCustomer  ProposerRole = "customer"
)

// ParseProposerRole validates a raw proposer role.
func ParseProposerRole(raw string) (ProposerRole, error) {
	switch ProposerRole(raw) {
	case ProposerInstaller, ProposerCustomer:
		return ProposerRole(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProposerRole, raw)
}

// String returns the raw role value.
func (role ProposerRole) String() string {
	return string(role)
}

// AssignmentStatus is the lifecycle state of a job assignment.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentAccepted   AssignmentStatus = "accepted"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// ParseAssignmentStatus validates a raw assignment status.
func ParseAssignmentStatus(raw string) (AssignmentStatus, error) {
	switch AssignmentStatus(raw) {
	case AssignmentAssigned, AssignmentAccepted, AssignmentInProgress, AssignmentCompleted:
		return AssignmentStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAssignmentStatus, raw)
}

// String returns the raw status value.
func (status AssignmentStatus) String() string {
	return string(status)
}

// VoucherStatus is the lifecycle state of a first-lead voucher grant.
type VoucherStatus string

const (
	VoucherEligible VoucherStatus = "eligible"
	VoucherConsumed VoucherStatus = "consumed"
)

// ParseVoucherStatus validates a raw voucher status.
func ParseVoucherStatus(raw string) (VoucherStatus, error) {
	switch VoucherStatus(raw) {
	case VoucherEligible, VoucherConsumed:
		return VoucherStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVoucherStatus, raw)
}

// String returns the raw status value.
func (status VoucherStatus) String() string {
	return string(status)
}

// EntryType enumerates wallet ledger entry kinds.
type EntryType string

const (
	EntryTopUp        EntryType = "top_up"
	EntryRefund       EntryType = "refund"
	EntryLeadPurchase EntryType = "lead_purchase"
)

// ParseEntryType validates a raw entry type.
func ParseEntryType(raw string) (EntryType, error) {
	switch EntryType(raw) {
	case EntryTopUp, EntryRefund, EntryLeadPurchase:
		return EntryType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, raw)
}

// String returns the raw type value.
func (entryType EntryType) String() string {
	return string(entryType)
}

// CustomerContact holds the contact details revealed on lead purchase.
type CustomerContact struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Booking is a customer's installation request.
type Booking struct {
	BookingID         BookingID
	Contact           CustomerContact
	ServiceType       string
	TVSize            string
	PriceCents        AmountCents
	PreferredDate     string
	PreferredTimeSlot string
	Status            BookingStatus
	CreatedUnixUTC    int64
	UpdatedUnixUTC    int64
}

// Lead is the purchasable view over a booking.
type Lead struct {
	BookingID      BookingID
	FeeCents       AmountCents
	CreatedUnixUTC int64
}

// OpenLead is a redacted lead summary shown to installers before purchase.
type OpenLead struct {
	BookingID         BookingID
	FeeCents          AmountCents
	ServiceType       string
	TVSize            string
	PreferredDate     string
	PreferredTimeSlot string
	CreatedUnixUTC    int64
}

// LeadPurchase records one installer's paid access to one lead.
type LeadPurchase struct {
	BookingID            BookingID
	InstallerID          InstallerID
	CostCents            AmountCents
	VoucherDiscountCents AmountCents
	CreatedUnixUTC       int64
}

// AssignmentGrant is returned by a successful purchase and entitles the
// installer to submit schedule proposals for the booking.
type AssignmentGrant struct {
	BookingID            BookingID
	InstallerID          InstallerID
	FinalCostCents       AmountCents
	VoucherDiscountCents AmountCents
}

// WalletEntry is a single immutable line in an installer's wallet ledger.
// AmountCents is signed: credits positive, debits negative.
type WalletEntry struct {
	EntryID        string
	AccountID      string
	Type           EntryType
	AmountCents    int64
	IdempotencyKey string
	MetadataJSON   string
	CreatedUnixUTC int64
}

// VoucherGrant is the one-time first-lead discount for an installer.
type VoucherGrant struct {
	InstallerID InstallerID
	AmountCents AmountCents
	Status      VoucherStatus
}

// VoucherEligibility is the read-side view of a voucher grant.
type VoucherEligibility struct {
	Eligible    bool
	AmountCents AmountCents
}

// ScheduleProposal is one party's candidate installation date and slot.
type ScheduleProposal struct {
	ProposalID     ProposalID
	BookingID      BookingID
	ProposerRole   ProposerRole
	InstallerID    InstallerID
	Date           ScheduleDate
	TimeSlot       string
	Message        string
	Status         ProposalStatus
	Reschedule     bool
	CreatedUnixUTC int64
}

// JobAssignment links an installer to a booking once a schedule is accepted.
type JobAssignment struct {
	BookingID        BookingID
	InstallerID      InstallerID
	ProposalID       ProposalID
	Status           AssignmentStatus
	AssignedUnixUTC  int64
	AcceptedUnixUTC  int64
	StartedUnixUTC   int64
	CompletedUnixUTC int64
}

// PublicStatus is the derived tracking status shown on the public QR page.
type PublicStatus string

const (
	PublicReceived           PublicStatus = "received"
	PublicInstallerAssigned  PublicStatus = "installer_assigned"
	PublicInstallerConfirmed PublicStatus = "installer_confirmed"
	PublicInProgress         PublicStatus = "in_progress"
	PublicCompleted          PublicStatus = "completed"
)

// String returns the raw status value.
func (status PublicStatus) String() string {
	return string(status)
}

// Store is the persistence contract used by Service.
// Implementations must make WithTx transactional: every mutation inside the
// callback commits or rolls back as a unit, and *ForUpdate reads take row
// locks that serialize concurrent callers.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetOrCreateWalletAccountID(ctx context.Context, installerID InstallerID) (string, error)
	GetWalletAccountIDForUpdate(ctx context.Context, installerID InstallerID) (string, error)
	SumWalletEntries(ctx context.Context, accountID string) (int64, error)
	InsertWalletEntry(ctx context.Context, entry WalletEntry) error
	ListWalletEntries(ctx context.Context, accountID string, beforeUnixUTC int64, limit int) ([]WalletEntry, error)

	CreateVoucherGrant(ctx context.Context, grant VoucherGrant) error
	GetVoucherGrant(ctx context.Context, installerID InstallerID) (VoucherGrant, bool, error)
	GetVoucherGrantForUpdate(ctx context.Context, installerID InstallerID) (VoucherGrant, bool, error)
	UpdateVoucherStatus(ctx context.Context, installerID InstallerID, from, to VoucherStatus) error

	CreateBooking(ctx context.Context, booking Booking) (BookingID, error)
	GetBooking(ctx context.Context, bookingID BookingID) (Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID BookingID, to BookingStatus, atUnixUTC int64) error

	CreateLead(ctx context.Context, lead Lead) error
	GetLead(ctx context.Context, bookingID BookingID) (Lead, bool, error)
	ListOpenLeads(ctx context.Context, limit int) ([]OpenLead, error)
	CreateLeadPurchase(ctx context.Context, purchase LeadPurchase) error
	HasLeadPurchase(ctx context.Context, bookingID BookingID, installerID InstallerID) (bool, error)

	CreateProposal(ctx context.Context, proposal ScheduleProposal) (ProposalID, error)
	GetProposalForUpdate(ctx context.Context, proposalID ProposalID) (ScheduleProposal, error)
	ListProposals(ctx context.Context, bookingID BookingID) ([]ScheduleProposal, error)
	UpdateProposalStatus(ctx context.Context, proposalID ProposalID, from, to ProposalStatus) error
	SupersedePendingProposals(ctx context.Context, bookingID BookingID, except ProposalID) error
	SupersedeInstallerPending(ctx context.Context, bookingID BookingID, installerID InstallerID) error
	FindAcceptedProposal(ctx context.Context, bookingID BookingID) (ScheduleProposal, bool, error)

	UpsertJobAssignment(ctx context.Context, assignment JobAssignment) error
	GetJobAssignment(ctx context.Context, bookingID BookingID) (JobAssignment, bool, error)
	UpdateAssignmentStatus(ctx context.Context, bookingID BookingID, from, to AssignmentStatus, atUnixUTC int64) error
}
