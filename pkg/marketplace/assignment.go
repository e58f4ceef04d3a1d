package marketplace

import "context"

// StartJob moves the assigned installer's job from accepted to in_progress.
func (service *Service) StartJob(ctx context.Context, installerID InstallerID, bookingID BookingID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		assignment, found, err := transactionStore.GetJobAssignment(ctx, bookingID)
		if err != nil {
			return err
		}
		if !found {
			return ErrAssignmentNotFound
		}
		if assignment.InstallerID != installerID {
			return ErrUnauthorized
		}
		now := service.nowFn()
		if err := transactionStore.UpdateAssignmentStatus(ctx, bookingID, AssignmentAccepted, AssignmentInProgress, now); err != nil {
			return err
		}
		return transactionStore.UpdateBookingStatus(ctx, bookingID, BookingInProgress, now)
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationStartJob,
		InstallerID: installerID,
		BookingID:   bookingID,
		Error:       operationError,
	})
	return operationError
}

// CompleteJob finishes the installation. The assignment is immutable after
// this transition; the status CAS makes a repeat call fail.
func (service *Service) CompleteJob(ctx context.Context, installerID InstallerID, bookingID BookingID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		assignment, found, err := transactionStore.GetJobAssignment(ctx, bookingID)
		if err != nil {
			return err
		}
		if !found {
			return ErrAssignmentNotFound
		}
		if assignment.InstallerID != installerID {
			return ErrUnauthorized
		}
		now := service.nowFn()
		if err := transactionStore.UpdateAssignmentStatus(ctx, bookingID, AssignmentInProgress, AssignmentCompleted, now); err != nil {
			return err
		}
		return transactionStore.UpdateBookingStatus(ctx, bookingID, BookingCompleted, now)
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationCompleteJob,
		InstallerID: installerID,
		BookingID:   bookingID,
		Error:       operationError,
	})
	if operationError != nil {
		return operationError
	}
	service.publishEvent(ctx, Event{
		Kind:        EventJobCompleted,
		BookingID:   bookingID.String(),
		InstallerID: installerID.String(),
	})
	return nil
}
