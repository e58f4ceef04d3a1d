package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

const (
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	dialectPostgres       = "postgres"

	errorOperationStore    = "store"
	errorSubjectAccount    = "wallet_account"
	errorSubjectEntry      = "wallet_entry"
	errorSubjectVoucher    = "voucher"
	errorSubjectBooking    = "booking"
	errorSubjectLead       = "lead"
	errorSubjectPurchase   = "lead_purchase"
	errorSubjectProposal   = "proposal"
	errorSubjectAssignment = "assignment"

	errorCodeCreate       = "create"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLookup       = "lookup"
	errorCodeSum          = "sum"
	errorCodeUpdateStatus = "update_status"
	errorCodeSupersede    = "supersede"
	errorCodeUpsert       = "upsert"
)

// Store implements marketplace.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore marketplace.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetOrCreateWalletAccountID(ctx context.Context, installerID marketplace.InstallerID) (string, error) {
	var account WalletAccount
	err := store.db.WithContext(ctx).
		Where(WalletAccount{InstallerID: installerID.String()}).
		FirstOrCreate(&account).Error
	if err != nil {
		return "", wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return account.AccountID, nil
}

// GetWalletAccountIDForUpdate locks the wallet account row, serializing
// concurrent debits for the installer. The row is created first when absent.
func (store *Store) GetWalletAccountIDForUpdate(ctx context.Context, installerID marketplace.InstallerID) (string, error) {
	if _, err := store.GetOrCreateWalletAccountID(ctx, installerID); err != nil {
		return "", err
	}
	var account WalletAccount
	err := store.locked(ctx).
		Where("installer_id = ?", installerID.String()).
		Take(&account).Error
	if err != nil {
		return "", wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return account.AccountID, nil
}

func (store *Store) SumWalletEntries(ctx context.Context, accountID string) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&WalletEntry{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectEntry, errorCodeSum, err)
	}
	return sum.Total, nil
}

func (store *Store) InsertWalletEntry(ctx context.Context, entry marketplace.WalletEntry) error {
	model := WalletEntry{
		AccountID:      entry.AccountID,
		Type:           entry.Type.String(),
		AmountCents:    entry.AmountCents,
		IdempotencyKey: entry.IdempotencyKey,
		Metadata:       datatypesJSON(entry.MetadataJSON),
		CreatedAt:      time.Unix(entry.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectEntry, errorCodeDuplicate, marketplace.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListWalletEntries(ctx context.Context, accountID string, beforeUnixUTC int64, limit int) ([]marketplace.WalletEntry, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}
	var rows []WalletEntry
	err := store.db.WithContext(ctx).
		Where("account_id = ? AND created_at < ?", accountID, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]marketplace.WalletEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapWalletEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) CreateVoucherGrant(ctx context.Context, grant marketplace.VoucherGrant) error {
	model := VoucherGrant{
		InstallerID: grant.InstallerID.String(),
		AmountCents: grant.AmountCents.Int64(),
		Status:      grant.Status.String(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectVoucher, errorCodeDuplicate, marketplace.ErrVoucherAlreadyConsumed)
	}
	if err != nil {
		return wrapStoreError(errorSubjectVoucher, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetVoucherGrant(ctx context.Context, installerID marketplace.InstallerID) (marketplace.VoucherGrant, bool, error) {
	return store.getVoucherGrant(ctx, store.db.WithContext(ctx), installerID)
}

func (store *Store) GetVoucherGrantForUpdate(ctx context.Context, installerID marketplace.InstallerID) (marketplace.VoucherGrant, bool, error) {
	return store.getVoucherGrant(ctx, store.locked(ctx), installerID)
}

func (store *Store) getVoucherGrant(ctx context.Context, db *gorm.DB, installerID marketplace.InstallerID) (marketplace.VoucherGrant, bool, error) {
	var model VoucherGrant
	err := db.Where("installer_id = ?", installerID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.VoucherGrant{}, false, nil
	}
	if err != nil {
		return marketplace.VoucherGrant{}, false, wrapStoreError(errorSubjectVoucher, errorCodeGet, err)
	}
	grant, err := mapVoucherGrant(model)
	if err != nil {
		return marketplace.VoucherGrant{}, false, wrapStoreError(errorSubjectVoucher, errorCodeInvalid, err)
	}
	return grant, true, nil
}

func (store *Store) UpdateVoucherStatus(ctx context.Context, installerID marketplace.InstallerID, from, to marketplace.VoucherStatus) error {
	result := store.db.WithContext(ctx).
		Model(&VoucherGrant{}).
		Where("installer_id = ? AND status = ?", installerID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectVoucher, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectVoucher, errorCodeUpdateStatus, marketplace.ErrVoucherAlreadyConsumed)
	}
	return nil
}

func (store *Store) CreateBooking(ctx context.Context, booking marketplace.Booking) (marketplace.BookingID, error) {
	model := Booking{
		BookingID:         booking.BookingID.String(),
		CustomerName:      booking.Contact.Name,
		CustomerEmail:     booking.Contact.Email,
		CustomerPhone:     booking.Contact.Phone,
		CustomerAddress:   booking.Contact.Address,
		ServiceType:       booking.ServiceType,
		TVSize:            booking.TVSize,
		PriceCents:        booking.PriceCents.Int64(),
		PreferredDate:     booking.PreferredDate,
		PreferredTimeSlot: booking.PreferredTimeSlot,
		Status:            booking.Status.String(),
		CreatedAt:         time.Unix(booking.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:         time.Unix(booking.UpdatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return marketplace.BookingID{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, marketplace.ErrBookingExists)
	}
	if err != nil {
		return marketplace.BookingID{}, wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
	}
	bookingID, err := marketplace.NewBookingID(model.BookingID)
	if err != nil {
		return marketplace.BookingID{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return bookingID, nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID marketplace.BookingID) (marketplace.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, marketplace.ErrBookingNotFound)
	}
	if err != nil {
		return marketplace.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	booking, err := mapBooking(model)
	if err != nil {
		return marketplace.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking, nil
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID marketplace.BookingID, to marketplace.BookingStatus, atUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ?", bookingID.String()).
		Updates(map[string]interface{}{
			"status":     to.String(),
			"updated_at": time.Unix(atUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, marketplace.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) CreateLead(ctx context.Context, lead marketplace.Lead) error {
	model := Lead{
		BookingID: lead.BookingID.String(),
		FeeCents:  lead.FeeCents.Int64(),
		CreatedAt: time.Unix(lead.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectLead, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetLead(ctx context.Context, bookingID marketplace.BookingID) (marketplace.Lead, bool, error) {
	var model Lead
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.Lead{}, false, nil
	}
	if err != nil {
		return marketplace.Lead{}, false, wrapStoreError(errorSubjectLead, errorCodeGet, err)
	}
	lead, err := mapLead(model)
	if err != nil {
		return marketplace.Lead{}, false, wrapStoreError(errorSubjectLead, errorCodeInvalid, err)
	}
	return lead, true, nil
}

func (store *Store) ListOpenLeads(ctx context.Context, limit int) ([]marketplace.OpenLead, error) {
	type openLeadRow struct {
		BookingID         string
		FeeCents          int64
		ServiceType       string
		TVSize            string `gorm:"column:tv_size"`
		PreferredDate     string
		PreferredTimeSlot string
		CreatedAt         time.Time
	}
	var rows []openLeadRow
	err := store.db.WithContext(ctx).
		Table("leads").
		Select("leads.booking_id, leads.fee_cents, leads.created_at, bookings.service_type, bookings.tv_size, bookings.preferred_date, bookings.preferred_time_slot").
		Joins("JOIN bookings ON bookings.booking_id = leads.booking_id").
		Where("bookings.status IN ?", []string{
			marketplace.BookingOpen.String(),
			marketplace.BookingAssigned.String(),
			marketplace.BookingConfirmed.String(),
		}).
		Order("leads.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLead, errorCodeList, err)
	}
	leads := make([]marketplace.OpenLead, 0, len(rows))
	for _, row := range rows {
		bookingID, err := marketplace.NewBookingID(row.BookingID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLead, errorCodeInvalid, err)
		}
		fee, err := marketplace.NewAmountCents(row.FeeCents)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLead, errorCodeInvalid, err)
		}
		leads = append(leads, marketplace.OpenLead{
			BookingID:         bookingID,
			FeeCents:          fee,
			ServiceType:       row.ServiceType,
			TVSize:            row.TVSize,
			PreferredDate:     row.PreferredDate,
			PreferredTimeSlot: row.PreferredTimeSlot,
			CreatedUnixUTC:    row.CreatedAt.Unix(),
		})
	}
	return leads, nil
}

func (store *Store) CreateLeadPurchase(ctx context.Context, purchase marketplace.LeadPurchase) error {
	model := LeadPurchase{
		BookingID:            purchase.BookingID.String(),
		InstallerID:          purchase.InstallerID.String(),
		CostCents:            purchase.CostCents.Int64(),
		VoucherDiscountCents: purchase.VoucherDiscountCents.Int64(),
		CreatedAt:            time.Unix(purchase.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPurchase, errorCodeDuplicate, marketplace.ErrAlreadyPurchased)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPurchase, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) HasLeadPurchase(ctx context.Context, bookingID marketplace.BookingID, installerID marketplace.InstallerID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LeadPurchase{}).
		Where("booking_id = ? AND installer_id = ?", bookingID.String(), installerID.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectPurchase, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) CreateProposal(ctx context.Context, proposal marketplace.ScheduleProposal) (marketplace.ProposalID, error) {
	model := ScheduleProposal{
		ProposalID:   proposal.ProposalID.String(),
		BookingID:    proposal.BookingID.String(),
		ProposerRole: proposal.ProposerRole.String(),
		InstallerID:  proposal.InstallerID.String(),
		Date:         proposal.Date.String(),
		TimeSlot:     proposal.TimeSlot,
		Message:      proposal.Message,
		Status:       proposal.Status.String(),
		Reschedule:   proposal.Reschedule,
		CreatedAt:    time.Unix(proposal.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return marketplace.ProposalID{}, wrapStoreError(errorSubjectProposal, errorCodeCreate, err)
	}
	proposalID, err := marketplace.NewProposalID(model.ProposalID)
	if err != nil {
		return marketplace.ProposalID{}, wrapStoreError(errorSubjectProposal, errorCodeInvalid, err)
	}
	return proposalID, nil
}

func (store *Store) GetProposalForUpdate(ctx context.Context, proposalID marketplace.ProposalID) (marketplace.ScheduleProposal, error) {
	var model ScheduleProposal
	err := store.locked(ctx).
		Where("proposal_id = ?", proposalID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.ScheduleProposal{}, wrapStoreError(errorSubjectProposal, errorCodeGet, marketplace.ErrProposalNotFound)
	}
	if err != nil {
		return marketplace.ScheduleProposal{}, wrapStoreError(errorSubjectProposal, errorCodeGet, err)
	}
	proposal, err := mapProposal(model)
	if err != nil {
		return marketplace.ScheduleProposal{}, wrapStoreError(errorSubjectProposal, errorCodeInvalid, err)
	}
	return proposal, nil
}

func (store *Store) ListProposals(ctx context.Context, bookingID marketplace.BookingID) ([]marketplace.ScheduleProposal, error) {
	var rows []ScheduleProposal
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID.String()).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectProposal, errorCodeList, err)
	}
	proposals := make([]marketplace.ScheduleProposal, 0, len(rows))
	for _, row := range rows {
		proposal, err := mapProposal(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProposal, errorCodeInvalid, err)
		}
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

func (store *Store) UpdateProposalStatus(ctx context.Context, proposalID marketplace.ProposalID, from, to marketplace.ProposalStatus) error {
	result := store.db.WithContext(ctx).
		Model(&ScheduleProposal{}).
		Where("proposal_id = ? AND status = ?", proposalID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectProposal, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProposal, errorCodeUpdateStatus, marketplace.ErrProposalNotPending)
	}
	return nil
}

func (store *Store) SupersedePendingProposals(ctx context.Context, bookingID marketplace.BookingID, except marketplace.ProposalID) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduleProposal{}).
		Where("booking_id = ? AND status = ? AND proposal_id <> ?", bookingID.String(), marketplace.ProposalPending.String(), except.String()).
		Update("status", marketplace.ProposalSuperseded.String()).Error
	if err != nil {
		return wrapStoreError(errorSubjectProposal, errorCodeSupersede, err)
	}
	return nil
}

func (store *Store) SupersedeInstallerPending(ctx context.Context, bookingID marketplace.BookingID, installerID marketplace.InstallerID) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduleProposal{}).
		Where("booking_id = ? AND installer_id = ? AND status = ?", bookingID.String(), installerID.String(), marketplace.ProposalPending.String()).
		Update("status", marketplace.ProposalSuperseded.String()).Error
	if err != nil {
		return wrapStoreError(errorSubjectProposal, errorCodeSupersede, err)
	}
	return nil
}

func (store *Store) FindAcceptedProposal(ctx context.Context, bookingID marketplace.BookingID) (marketplace.ScheduleProposal, bool, error) {
	var model ScheduleProposal
	err := store.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID.String(), marketplace.ProposalAccepted.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.ScheduleProposal{}, false, nil
	}
	if err != nil {
		return marketplace.ScheduleProposal{}, false, wrapStoreError(errorSubjectProposal, errorCodeGet, err)
	}
	proposal, err := mapProposal(model)
	if err != nil {
		return marketplace.ScheduleProposal{}, false, wrapStoreError(errorSubjectProposal, errorCodeInvalid, err)
	}
	return proposal, true, nil
}

func (store *Store) UpsertJobAssignment(ctx context.Context, assignment marketplace.JobAssignment) error {
	assignedAt := time.Unix(assignment.AssignedUnixUTC, 0).UTC()
	model := JobAssignment{
		BookingID:   assignment.BookingID.String(),
		InstallerID: assignment.InstallerID.String(),
		ProposalID:  assignment.ProposalID.String(),
		Status:      assignment.Status.String(),
		AssignedAt:  assignedAt,
	}
	if assignment.AcceptedUnixUTC != 0 {
		acceptedAt := time.Unix(assignment.AcceptedUnixUTC, 0).UTC()
		model.AcceptedAt = &acceptedAt
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "booking_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"installer_id", "proposal_id", "status", "accepted_at", "updated_at",
			}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectAssignment, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) GetJobAssignment(ctx context.Context, bookingID marketplace.BookingID) (marketplace.JobAssignment, bool, error) {
	var model JobAssignment
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.JobAssignment{}, false, nil
	}
	if err != nil {
		return marketplace.JobAssignment{}, false, wrapStoreError(errorSubjectAssignment, errorCodeGet, err)
	}
	assignment, err := mapAssignment(model)
	if err != nil {
		return marketplace.JobAssignment{}, false, wrapStoreError(errorSubjectAssignment, errorCodeInvalid, err)
	}
	return assignment, true, nil
}

func (store *Store) UpdateAssignmentStatus(ctx context.Context, bookingID marketplace.BookingID, from, to marketplace.AssignmentStatus, atUnixUTC int64) error {
	at := time.Unix(atUnixUTC, 0).UTC()
	updates := map[string]interface{}{
		"status":     to.String(),
		"updated_at": at,
	}
	switch to {
	case marketplace.AssignmentInProgress:
		updates["started_at"] = at
	case marketplace.AssignmentCompleted:
		updates["completed_at"] = at
	case marketplace.AssignmentAccepted:
		updates["accepted_at"] = at
	}
	result := store.db.WithContext(ctx).
		Model(&JobAssignment{}).
		Where("booking_id = ? AND status = ?", bookingID.String(), from.String()).
		Updates(updates)
	if result.Error != nil {
		return wrapStoreError(errorSubjectAssignment, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAssignment, errorCodeUpdateStatus, marketplace.ErrAssignmentConflict)
	}
	return nil
}

// locked returns a query that takes a row lock on backends that support it.
// SQLite has no SELECT FOR UPDATE; its single-writer transactions give the
// same serialization.
func (store *Store) locked(ctx context.Context) *gorm.DB {
	db := store.db.WithContext(ctx)
	if store.db.Dialector.Name() == dialectPostgres {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func wrapStoreError(subject string, code string, err error) error {
	return marketplace.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapWalletEntry(row WalletEntry) (marketplace.WalletEntry, error) {
	entryType, err := marketplace.ParseEntryType(row.Type)
	if err != nil {
		return marketplace.WalletEntry{}, err
	}
	return marketplace.WalletEntry{
		EntryID:        row.EntryID,
		AccountID:      row.AccountID,
		Type:           entryType,
		AmountCents:    row.AmountCents,
		IdempotencyKey: row.IdempotencyKey,
		MetadataJSON:   string(row.Metadata),
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapVoucherGrant(row VoucherGrant) (marketplace.VoucherGrant, error) {
	installerID, err := marketplace.NewInstallerID(row.InstallerID)
	if err != nil {
		return marketplace.VoucherGrant{}, err
	}
	amount, err := marketplace.NewAmountCents(row.AmountCents)
	if err != nil {
		return marketplace.VoucherGrant{}, err
	}
	status, err := marketplace.ParseVoucherStatus(row.Status)
	if err != nil {
		return marketplace.VoucherGrant{}, err
	}
	return marketplace.VoucherGrant{
		InstallerID: installerID,
		AmountCents: amount,
		Status:      status,
	}, nil
}

func mapBooking(row Booking) (marketplace.Booking, error) {
	bookingID, err := marketplace.NewBookingID(row.BookingID)
	if err != nil {
		return marketplace.Booking{}, err
	}
	price, err := marketplace.NewAmountCents(row.PriceCents)
	if err != nil {
		return marketplace.Booking{}, err
	}
	status, err := marketplace.ParseBookingStatus(row.Status)
	if err != nil {
		return marketplace.Booking{}, err
	}
	return marketplace.Booking{
		BookingID: bookingID,
		Contact: marketplace.CustomerContact{
			Name:    row.CustomerName,
			Email:   row.CustomerEmail,
			Phone:   row.CustomerPhone,
			Address: row.CustomerAddress,
		},
		ServiceType:       row.ServiceType,
		TVSize:            row.TVSize,
		PriceCents:        price,
		PreferredDate:     row.PreferredDate,
		PreferredTimeSlot: row.PreferredTimeSlot,
		Status:            status,
		CreatedUnixUTC:    row.CreatedAt.Unix(),
		UpdatedUnixUTC:    row.UpdatedAt.Unix(),
	}, nil
}

func mapLead(row Lead) (marketplace.Lead, error) {
	bookingID, err := marketplace.NewBookingID(row.BookingID)
	if err != nil {
		return marketplace.Lead{}, err
	}
	fee, err := marketplace.NewAmountCents(row.FeeCents)
	if err != nil {
		return marketplace.Lead{}, err
	}
	return marketplace.Lead{
		BookingID:      bookingID,
		FeeCents:       fee,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapProposal(row ScheduleProposal) (marketplace.ScheduleProposal, error) {
	proposalID, err := marketplace.NewProposalID(row.ProposalID)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	bookingID, err := marketplace.NewBookingID(row.BookingID)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	role, err := marketplace.ParseProposerRole(row.ProposerRole)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	installerID, err := marketplace.NewInstallerID(row.InstallerID)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	date, err := marketplace.NewScheduleDate(row.Date)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	status, err := marketplace.ParseProposalStatus(row.Status)
	if err != nil {
		return marketplace.ScheduleProposal{}, err
	}
	return marketplace.ScheduleProposal{
		ProposalID:     proposalID,
		BookingID:      bookingID,
		ProposerRole:   role,
		InstallerID:    installerID,
		Date:           date,
		TimeSlot:       row.TimeSlot,
		Message:        row.Message,
		Status:         status,
		Reschedule:     row.Reschedule,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapAssignment(row JobAssignment) (marketplace.JobAssignment, error) {
	bookingID, err := marketplace.NewBookingID(row.BookingID)
	if err != nil {
		return marketplace.JobAssignment{}, err
	}
	installerID, err := marketplace.NewInstallerID(row.InstallerID)
	if err != nil {
		return marketplace.JobAssignment{}, err
	}
	proposalID, err := marketplace.NewProposalID(row.ProposalID)
	if err != nil {
		return marketplace.JobAssignment{}, err
	}
	status, err := marketplace.ParseAssignmentStatus(row.Status)
	if err != nil {
		return marketplace.JobAssignment{}, err
	}
	return marketplace.JobAssignment{
		BookingID:        bookingID,
		InstallerID:      installerID,
		ProposalID:       proposalID,
		Status:           status,
		AssignedUnixUTC:  row.AssignedAt.Unix(),
		AcceptedUnixUTC:  timeOrZero(row.AcceptedAt),
		StartedUnixUTC:   timeOrZero(row.StartedAt),
		CompletedUnixUTC: timeOrZero(row.CompletedAt),
	}, nil
}

func timeOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
