package marketplace

import "context"

// VoucherEligibility reports whether the installer still holds an unconsumed
// first-lead voucher and for how much. Pure read.
func (service *Service) VoucherEligibility(ctx context.Context, installerID InstallerID) (VoucherEligibility, error) {
	grant, found, err := service.store.GetVoucherGrant(ctx, installerID)
	if err != nil {
		return VoucherEligibility{}, err
	}
	if !found || grant.Status != VoucherEligible {
		return VoucherEligibility{}, nil
	}
	return VoucherEligibility{Eligible: true, AmountCents: grant.AmountCents}, nil
}

// ConsumeVoucher marks the installer's voucher consumed and returns the
// discount to apply, capped at leadFee. Fails with ErrVoucherAlreadyConsumed
// when no unconsumed grant exists. Exactly one concurrent caller may win.
func (service *Service) ConsumeVoucher(ctx context.Context, installerID InstallerID, leadFee AmountCents) (AmountCents, error) {
	var discount AmountCents
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		discount, err = service.consumeVoucherTx(ctx, transactionStore, installerID, leadFee)
		return err
	})
	if operationError != nil {
		return 0, operationError
	}
	return discount, nil
}

// consumeVoucherTx runs the eligible->consumed compare-and-swap inside an
// existing transaction. The grant row is locked for update, so one of two
// racing consumers blocks and then observes the consumed status.
func (service *Service) consumeVoucherTx(ctx context.Context, transactionStore Store, installerID InstallerID, leadFee AmountCents) (AmountCents, error) {
	grant, found, err := transactionStore.GetVoucherGrantForUpdate(ctx, installerID)
	if err != nil {
		return 0, err
	}
	if !found || grant.Status != VoucherEligible {
		return 0, ErrVoucherAlreadyConsumed
	}
	if err := transactionStore.UpdateVoucherStatus(ctx, installerID, VoucherEligible, VoucherConsumed); err != nil {
		return 0, err
	}
	discount := grant.AmountCents
	if leadFee < discount {
		discount = leadFee
	}
	return discount, nil
}

// voucherDiscountTx applies the voucher inside the purchase transaction when
// one is still eligible, and charges full price otherwise. A consumed or
// absent voucher is not an error here: the purchase simply pays the fee.
func (service *Service) voucherDiscountTx(ctx context.Context, transactionStore Store, installerID InstallerID, leadFee AmountCents) (AmountCents, error) {
	grant, found, err := transactionStore.GetVoucherGrantForUpdate(ctx, installerID)
	if err != nil {
		return 0, err
	}
	if !found || grant.Status != VoucherEligible {
		return 0, nil
	}
	if err := transactionStore.UpdateVoucherStatus(ctx, installerID, VoucherEligible, VoucherConsumed); err != nil {
		return 0, err
	}
	discount := grant.AmountCents
	if leadFee < discount {
		discount = leadFee
	}
	return discount, nil
}
