package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WalletAccount represents the wallet_accounts table, one row per installer.
type WalletAccount struct {
	AccountID   string    `gorm:"type:uuid;primaryKey"`
	InstallerID string    `gorm:"not null;uniqueIndex:uniq_wallet_installer"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (WalletAccount) TableName() string { return "wallet_accounts" }

func (account *WalletAccount) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// WalletEntry mirrors the wallet_entries table. Amounts are signed cents;
// the balance is the sum over an account.
type WalletEntry struct {
	EntryID        string         `gorm:"type:uuid;primaryKey"`
	AccountID      string         `gorm:"type:uuid;not null;index:idx_wallet_account_created,priority:1;index:uniq_wallet_idem,unique,priority:1"`
	Type           string         `gorm:"not null"`
	AmountCents    int64          `gorm:"not null"`
	IdempotencyKey string         `gorm:"not null;index:uniq_wallet_idem,unique,priority:2"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_wallet_account_created,priority:2"`
}

func (WalletEntry) TableName() string { return "wallet_entries" }

func (entry *WalletEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// VoucherGrant mirrors the voucher_grants table, one per installer, never
// re-issued.
type VoucherGrant struct {
	InstallerID string    `gorm:"primaryKey"`
	AmountCents int64     `gorm:"not null"`
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (VoucherGrant) TableName() string { return "voucher_grants" }

// Booking mirrors the bookings table.
type Booking struct {
	BookingID         string    `gorm:"type:uuid;primaryKey"`
	CustomerName      string    `gorm:"not null"`
	CustomerEmail     string    `gorm:""`
	CustomerPhone     string    `gorm:""`
	CustomerAddress   string    `gorm:""`
	ServiceType       string    `gorm:"not null"`
	TVSize            string    `gorm:"column:tv_size"`
	PriceCents        int64     `gorm:"not null"`
	PreferredDate     string    `gorm:""`
	PreferredTimeSlot string    `gorm:""`
	Status            string    `gorm:"not null;index:idx_bookings_status"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

func (booking *Booking) BeforeCreate(tx *gorm.DB) error {
	if booking.BookingID == "" {
		booking.BookingID = uuid.NewString()
	}
	return nil
}

// Lead mirrors the leads table, 1:1 with bookings.
type Lead struct {
	BookingID string    `gorm:"type:uuid;primaryKey"`
	FeeCents  int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Lead) TableName() string { return "leads" }

// LeadPurchase mirrors the lead_purchases table. The composite primary key
// is the at-most-one-charge guard per installer and lead.
type LeadPurchase struct {
	BookingID            string    `gorm:"type:uuid;primaryKey"`
	InstallerID          string    `gorm:"primaryKey"`
	CostCents            int64     `gorm:"not null"`
	VoucherDiscountCents int64     `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
}

func (LeadPurchase) TableName() string { return "lead_purchases" }

// ScheduleProposal mirrors the schedule_proposals table.
type ScheduleProposal struct {
	ProposalID   string    `gorm:"type:uuid;primaryKey"`
	BookingID    string    `gorm:"type:uuid;not null;index:idx_proposals_booking_status,priority:1"`
	ProposerRole string    `gorm:"not null"`
	InstallerID  string    `gorm:"not null"`
	Date         string    `gorm:"not null"`
	TimeSlot     string    `gorm:""`
	Message      string    `gorm:""`
	Status       string    `gorm:"not null;index:idx_proposals_booking_status,priority:2"`
	Reschedule   bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (ScheduleProposal) TableName() string { return "schedule_proposals" }

func (proposal *ScheduleProposal) BeforeCreate(tx *gorm.DB) error {
	if proposal.ProposalID == "" {
		proposal.ProposalID = uuid.NewString()
	}
	return nil
}

// JobAssignment mirrors the job_assignments table, at most one per booking.
type JobAssignment struct {
	BookingID   string     `gorm:"type:uuid;primaryKey"`
	InstallerID string     `gorm:"not null"`
	ProposalID  string     `gorm:"not null"`
	Status      string     `gorm:"not null"`
	AssignedAt  time.Time  `gorm:"not null"`
	AcceptedAt  *time.Time `gorm:""`
	StartedAt   *time.Time `gorm:""`
	CompletedAt *time.Time `gorm:""`
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (JobAssignment) TableName() string { return "job_assignments" }

// Models lists every table for sqlite auto-migration.
func Models() []any {
	return []any{
		&WalletAccount{},
		&WalletEntry{},
		&VoucherGrant{},
		&Booking{},
		&Lead{},
		&LeadPurchase{},
		&ScheduleProposal{},
		&JobAssignment{},
	}
}
