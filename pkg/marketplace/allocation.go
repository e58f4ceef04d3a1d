package marketplace

import "context"

// PurchaseLead converts wallet credit (optionally discounted by the
// first-lead voucher) into access to a booking's contact details and the
// right to propose schedules for it.
//
// The whole flow runs in one storage transaction: the idempotency guard, the
// voucher consumption, and the wallet debit commit or roll back together. A
// purchase does not lock the lead exclusively; several installers may each
// buy the same lead and compete with proposals.
func (service *Service) PurchaseLead(ctx context.Context, installerID InstallerID, bookingID BookingID) (AssignmentGrant, error) {
	var grant AssignmentGrant
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		lead, found, err := transactionStore.GetLead(ctx, bookingID)
		if err != nil {
			return err
		}
		if !found {
			return ErrLeadNotFound
		}
		booking, err := transactionStore.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !leadOpenForPurchase(booking.Status) {
			return ErrLeadNotFound
		}
		purchased, err := transactionStore.HasLeadPurchase(ctx, bookingID, installerID)
		if err != nil {
			return err
		}
		if purchased {
			return ErrAlreadyPurchased
		}

		discount, err := service.voucherDiscountTx(ctx, transactionStore, installerID, lead.FeeCents)
		if err != nil {
			return err
		}
		finalCost := lead.FeeCents - discount
		if finalCost > 0 {
			idempotencyKey, err := deriveIdempotencyKey(idempotencyPrefixPurchase, bookingID.String(), installerID.String())
			if err != nil {
				return err
			}
			metadata, err := NewMetadataJSON(`{"booking_id":"` + bookingID.String() + `"}`)
			if err != nil {
				return err
			}
			if err := service.debitTx(ctx, transactionStore, installerID, finalCost, EntryLeadPurchase, idempotencyKey, metadata); err != nil {
				return err
			}
		}

		if err := transactionStore.CreateLeadPurchase(ctx, LeadPurchase{
			BookingID:            bookingID,
			InstallerID:          installerID,
			CostCents:            finalCost,
			VoucherDiscountCents: discount,
			CreatedUnixUTC:       service.nowFn(),
		}); err != nil {
			return err
		}
		grant = AssignmentGrant{
			BookingID:            bookingID,
			InstallerID:          installerID,
			FinalCostCents:       finalCost,
			VoucherDiscountCents: discount,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationPurchaseLead,
		InstallerID: installerID,
		BookingID:   bookingID,
		Amount:      grant.FinalCostCents,
		Error:       operationError,
	})
	if operationError != nil {
		return AssignmentGrant{}, operationError
	}
	service.publishEvent(ctx, Event{
		Kind:        EventLeadPurchased,
		BookingID:   bookingID.String(),
		InstallerID: installerID.String(),
		AmountCents: grant.FinalCostCents.Int64(),
	})
	return grant, nil
}

// ListOpenLeads returns redacted summaries of purchasable leads. Customer
// contact details are never part of this view.
func (service *Service) ListOpenLeads(ctx context.Context, limit int) ([]OpenLead, error) {
	return service.store.ListOpenLeads(ctx, limit)
}

// LeadContact reveals the booking's customer contact to an installer who has
// purchased the lead. Installers without a purchase get ErrUnauthorized.
func (service *Service) LeadContact(ctx context.Context, installerID InstallerID, bookingID BookingID) (CustomerContact, error) {
	purchased, err := service.store.HasLeadPurchase(ctx, bookingID, installerID)
	if err != nil {
		return CustomerContact{}, err
	}
	if !purchased {
		return CustomerContact{}, ErrUnauthorized
	}
	booking, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return CustomerContact{}, err
	}
	return booking.Contact, nil
}

// HasPurchaseGrant reports whether the installer may propose schedules for
// the booking.
func (service *Service) HasPurchaseGrant(ctx context.Context, installerID InstallerID, bookingID BookingID) (bool, error) {
	return service.store.HasLeadPurchase(ctx, bookingID, installerID)
}

// leadOpenForPurchase reports whether the booking can still be bought as a
// lead. Cancelled and finished work is off the market; negotiation states
// stay purchasable because competing installers are allowed in.
func leadOpenForPurchase(status BookingStatus) bool {
	switch status {
	case BookingOpen, BookingAssigned, BookingConfirmed:
		return true
	case BookingInProgress, BookingCompleted, BookingCancelled:
		return false
	}
	return false
}
