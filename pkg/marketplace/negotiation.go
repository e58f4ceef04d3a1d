package marketplace

import "context"

// ProposalInput carries a new schedule proposal from either party.
type ProposalInput struct {
	BookingID    BookingID
	ProposerRole ProposerRole
	InstallerID  InstallerID
	Date         ScheduleDate
	TimeSlot     string
	Message      string
}

// ProposeSchedule records a candidate installation date and slot.
//
// Installer proposals require a purchase grant for the booking. A customer
// proposal names the installer it is addressed to; that installer must hold
// a grant as well, since acceptance would assign them the job. A party's new
// proposal supersedes their own earlier pending one, so at most one pending
// proposal per (booking, installer) exists. Proposals against an already
// confirmed booking are flagged as reschedules.
func (service *Service) ProposeSchedule(ctx context.Context, input ProposalInput) (ProposalID, error) {
	var proposalID ProposalID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		booking, err := transactionStore.GetBooking(ctx, input.BookingID)
		if err != nil {
			return err
		}
		if booking.Status == BookingCancelled || booking.Status == BookingCompleted {
			return ErrBookingClosed
		}
		granted, err := transactionStore.HasLeadPurchase(ctx, input.BookingID, input.InstallerID)
		if err != nil {
			return err
		}
		if !granted {
			return ErrUnauthorized
		}
		_, hasAccepted, err := transactionStore.FindAcceptedProposal(ctx, input.BookingID)
		if err != nil {
			return err
		}
		if err := transactionStore.SupersedeInstallerPending(ctx, input.BookingID, input.InstallerID); err != nil {
			return err
		}
		proposalID, err = transactionStore.CreateProposal(ctx, ScheduleProposal{
			BookingID:      input.BookingID,
			ProposerRole:   input.ProposerRole,
			InstallerID:    input.InstallerID,
			Date:           input.Date,
			TimeSlot:       input.TimeSlot,
			Message:        input.Message,
			Status:         ProposalPending,
			Reschedule:     hasAccepted || booking.Status == BookingConfirmed,
			CreatedUnixUTC: service.nowFn(),
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationPropose,
		InstallerID: input.InstallerID,
		BookingID:   input.BookingID,
		ProposalID:  proposalID,
		Error:       operationError,
	})
	if operationError != nil {
		return ProposalID{}, operationError
	}
	service.publishEvent(ctx, Event{
		Kind:        EventProposalCreated,
		BookingID:   input.BookingID.String(),
		InstallerID: input.InstallerID.String(),
		ProposalID:  proposalID.String(),
	})
	return proposalID, nil
}

// AcceptProposal resolves the negotiation to a single accepted schedule.
//
// Only the counter-party may accept: a customer accepts an installer's
// proposal, the named installer accepts a customer's. Acceptance is
// serialized per booking through the row lock on the proposal; the loser of
// a racing accept observes ErrProposalNotPending. On success all sibling
// pending proposals become superseded, a previously accepted proposal (when
// rescheduling) is demoted, the job assignment is written for the proposal's
// installer, and the booking moves to confirmed. A proposal left pending on
// a booking that has since been cancelled or completed cannot be accepted.
func (service *Service) AcceptProposal(ctx context.Context, proposalID ProposalID, actorRole ProposerRole, actorInstallerID InstallerID) error {
	var accepted ScheduleProposal
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		proposal, err := transactionStore.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if proposal.Status != ProposalPending {
			return ErrProposalNotPending
		}
		if err := authorizeDecision(proposal, actorRole, actorInstallerID); err != nil {
			return err
		}
		booking, err := transactionStore.GetBooking(ctx, proposal.BookingID)
		if err != nil {
			return err
		}
		if booking.Status == BookingCancelled || booking.Status == BookingCompleted {
			return ErrBookingClosed
		}
		previous, hadAccepted, err := transactionStore.FindAcceptedProposal(ctx, proposal.BookingID)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateProposalStatus(ctx, proposalID, ProposalPending, ProposalAccepted); err != nil {
			return err
		}
		if hadAccepted {
			if err := transactionStore.UpdateProposalStatus(ctx, previous.ProposalID, ProposalAccepted, ProposalSuperseded); err != nil {
				return err
			}
		}
		if err := transactionStore.SupersedePendingProposals(ctx, proposal.BookingID, proposalID); err != nil {
			return err
		}
		now := service.nowFn()
		if err := transactionStore.UpsertJobAssignment(ctx, JobAssignment{
			BookingID:       proposal.BookingID,
			InstallerID:     proposal.InstallerID,
			ProposalID:      proposalID,
			Status:          AssignmentAccepted,
			AssignedUnixUTC: now,
			AcceptedUnixUTC: now,
		}); err != nil {
			return err
		}
		if err := transactionStore.UpdateBookingStatus(ctx, proposal.BookingID, BookingConfirmed, now); err != nil {
			return err
		}
		accepted = proposal
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationAccept,
		InstallerID: accepted.InstallerID,
		BookingID:   accepted.BookingID,
		ProposalID:  proposalID,
		Error:       operationError,
	})
	if operationError != nil {
		return operationError
	}
	service.publishEvent(ctx, Event{
		Kind:        EventProposalAccepted,
		BookingID:   accepted.BookingID.String(),
		InstallerID: accepted.InstallerID.String(),
		ProposalID:  proposalID.String(),
	})
	return nil
}

// RejectProposal marks a pending proposal rejected. Sibling proposals are
// untouched; the counter-party may still pick one of them.
func (service *Service) RejectProposal(ctx context.Context, proposalID ProposalID, actorRole ProposerRole, actorInstallerID InstallerID) error {
	var rejected ScheduleProposal
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		proposal, err := transactionStore.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if proposal.Status != ProposalPending {
			return ErrProposalNotPending
		}
		if err := authorizeDecision(proposal, actorRole, actorInstallerID); err != nil {
			return err
		}
		if err := transactionStore.UpdateProposalStatus(ctx, proposalID, ProposalPending, ProposalRejected); err != nil {
			return err
		}
		rejected = proposal
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationReject,
		InstallerID: rejected.InstallerID,
		BookingID:   rejected.BookingID,
		ProposalID:  proposalID,
		Error:       operationError,
	})
	if operationError != nil {
		return operationError
	}
	service.publishEvent(ctx, Event{
		Kind:        EventProposalRejected,
		BookingID:   rejected.BookingID.String(),
		InstallerID: rejected.InstallerID.String(),
		ProposalID:  proposalID.String(),
	})
	return nil
}

// ListProposals returns every proposal for the booking, any status.
func (service *Service) ListProposals(ctx context.Context, bookingID BookingID) ([]ScheduleProposal, error) {
	return service.store.ListProposals(ctx, bookingID)
}

// authorizeDecision enforces that accept/reject comes from the counter-party
// of the proposal, never its proposer.
func authorizeDecision(proposal ScheduleProposal, actorRole ProposerRole, actorInstallerID InstallerID) error {
	switch proposal.ProposerRole {
	case ProposerInstaller:
		if actorRole != ProposerCustomer {
			return ErrUnauthorized
		}
	case ProposerCustomer:
		if actorRole != ProposerInstaller || actorInstallerID != proposal.InstallerID {
			return ErrUnauthorized
		}
	}
	return nil
}
