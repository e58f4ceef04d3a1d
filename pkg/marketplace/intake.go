package marketplace

import (
	"context"
	"fmt"
	"strings"
)

// BookingInput carries a new installation request from the intake flow.
type BookingInput struct {
	Contact           CustomerContact
	ServiceType       string
	TVSize            string
	PriceCents        AmountCents
	PreferredDate     string
	PreferredTimeSlot string
	LeadFeeCents      AmountCents
}

// CreateBooking records the customer's request and exposes it to installers
// as a purchasable lead, in one transaction.
func (service *Service) CreateBooking(ctx context.Context, input BookingInput) (BookingID, error) {
	var bookingID BookingID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := validateContact(input.Contact); err != nil {
			return err
		}
		if input.LeadFeeCents.Int64() <= 0 {
			return fmt.Errorf("%w: lead fee must be greater than zero", ErrInvalidAmountCents)
		}
		now := service.nowFn()
		var err error
		bookingID, err = transactionStore.CreateBooking(ctx, Booking{
			Contact:           input.Contact,
			ServiceType:       strings.TrimSpace(input.ServiceType),
			TVSize:            strings.TrimSpace(input.TVSize),
			PriceCents:        input.PriceCents,
			PreferredDate:     strings.TrimSpace(input.PreferredDate),
			PreferredTimeSlot: strings.TrimSpace(input.PreferredTimeSlot),
			Status:            BookingOpen,
			CreatedUnixUTC:    now,
			UpdatedUnixUTC:    now,
		})
		if err != nil {
			return err
		}
		return transactionStore.CreateLead(ctx, Lead{
			BookingID:      bookingID,
			FeeCents:       input.LeadFeeCents,
			CreatedUnixUTC: now,
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateBooking,
		BookingID: bookingID,
		Amount:    input.PriceCents,
		Error:     operationError,
	})
	if operationError != nil {
		return BookingID{}, operationError
	}
	return bookingID, nil
}

// OnboardInstaller creates the wallet account and the one-time first-lead
// voucher for a new installer. Safe to repeat; an existing voucher grant,
// consumed or not, is never re-issued.
func (service *Service) OnboardInstaller(ctx context.Context, installerID InstallerID, voucherCents AmountCents) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetOrCreateWalletAccountID(ctx, installerID); err != nil {
			return err
		}
		if voucherCents.Int64() <= 0 {
			return nil
		}
		_, found, err := transactionStore.GetVoucherGrant(ctx, installerID)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		return transactionStore.CreateVoucherGrant(ctx, VoucherGrant{
			InstallerID: installerID,
			AmountCents: voucherCents,
			Status:      VoucherEligible,
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationOnboardInstaller,
		InstallerID: installerID,
		Amount:      voucherCents,
		Error:       operationError,
	})
	return operationError
}

// GetBooking returns the raw booking record. Handlers must not leak the
// contact block to installers without a purchase; see LeadContact.
func (service *Service) GetBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	return service.store.GetBooking(ctx, bookingID)
}

func validateContact(contact CustomerContact) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidContact)
	}
	if strings.TrimSpace(contact.Phone) == "" && strings.TrimSpace(contact.Email) == "" {
		return fmt.Errorf("%w: phone or email is required", ErrInvalidContact)
	}
	return nil
}
