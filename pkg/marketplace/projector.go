package marketplace

import "context"

// ProjectBookingStatus derives the public tracking status from the raw
// booking and its job assignment. Pure; no assignment means the booking has
// only been received, regardless of how many leads were sold.
func ProjectBookingStatus(booking Booking, assignment *JobAssignment) PublicStatus {
	if assignment == nil {
		return PublicReceived
	}
	switch assignment.Status {
	case AssignmentAssigned:
		return PublicInstallerAssigned
	case AssignmentAccepted:
		return PublicInstallerConfirmed
	case AssignmentInProgress:
		return PublicInProgress
	case AssignmentCompleted:
		return PublicCompleted
	}
	return PublicReceived
}

// BookingStatus recomputes the derived status from source state on every
// call. There is no stored projection to drift.
func (service *Service) BookingStatus(ctx context.Context, bookingID BookingID) (PublicStatus, error) {
	booking, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	assignment, found, err := service.store.GetJobAssignment(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !found {
		return ProjectBookingStatus(booking, nil), nil
	}
	return ProjectBookingStatus(booking, &assignment), nil
}
