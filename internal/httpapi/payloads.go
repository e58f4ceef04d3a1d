package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

const openLeadsLimit = 100

type createBookingRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	ServiceType       string `json:"service_type"`
	TVSize            string `json:"tv_size"`
	PriceCents        int64  `json:"price_cents"`
	PreferredDate     string `json:"preferred_date"`
	PreferredTimeSlot string `json:"preferred_time_slot"`
}

type topUpRequest struct {
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata"`
}

type proposeRequest struct {
	InstallerID string `json:"installer_id"`
	Date        string `json:"date"`
	TimeSlot    string `json:"time_slot"`
	Message     string `json:"message"`
}

type openLeadPayload struct {
	BookingID         string `json:"booking_id"`
	FeeCents          int64  `json:"fee_cents"`
	ServiceType       string `json:"service_type"`
	TVSize            string `json:"tv_size"`
	PreferredDate     string `json:"preferred_date"`
	PreferredTimeSlot string `json:"preferred_time_slot"`
	CreatedUnixUTC    int64  `json:"created_unix_utc"`
}

type contactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type proposalPayload struct {
	ProposalID     string `json:"proposal_id"`
	BookingID      string `json:"booking_id"`
	ProposerRole   string `json:"proposer_role"`
	InstallerID    string `json:"installer_id"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	Message        string `json:"message"`
	Status         string `json:"status"`
	Reschedule     bool   `json:"reschedule"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

type entryPayload struct {
	EntryID        string `json:"entry_id"`
	Type           string `json:"type"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

type walletResponse struct {
	BalanceCents int64          `json:"balance_cents"`
	Entries      []entryPayload `json:"entries"`
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

var validationErrors = []error{
	marketplace.ErrInvalidInstallerID,
	marketplace.ErrInvalidBookingID,
	marketplace.ErrInvalidProposalID,
	marketplace.ErrInvalidIdempotencyKey,
	marketplace.ErrInvalidAmountCents,
	marketplace.ErrInvalidMetadataJSON,
	marketplace.ErrInvalidScheduleDate,
	marketplace.ErrInvalidProposerRole,
	marketplace.ErrInvalidEntryType,
	marketplace.ErrInvalidContact,
}

// domainStatus maps domain errors onto HTTP status codes and stable API
// error codes. Unknown errors surface as 500.
func domainStatus(err error) (int, string) {
	switch {
	case errors.Is(err, marketplace.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, marketplace.ErrAlreadyPurchased):
		return http.StatusConflict, "already_purchased"
	case errors.Is(err, marketplace.ErrVoucherAlreadyConsumed):
		return http.StatusConflict, "voucher_already_consumed"
	case errors.Is(err, marketplace.ErrProposalNotPending):
		return http.StatusConflict, "proposal_not_pending"
	case errors.Is(err, marketplace.ErrBookingClosed):
		return http.StatusConflict, "booking_closed"
	case errors.Is(err, marketplace.ErrAssignmentConflict):
		return http.StatusConflict, "assignment_conflict"
	case errors.Is(err, marketplace.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, marketplace.ErrBookingExists):
		return http.StatusConflict, "booking_exists"
	case errors.Is(err, marketplace.ErrLeadNotFound):
		return http.StatusNotFound, "lead_not_found"
	case errors.Is(err, marketplace.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, marketplace.ErrProposalNotFound):
		return http.StatusNotFound, "proposal_not_found"
	case errors.Is(err, marketplace.ErrAssignmentNotFound):
		return http.StatusNotFound, "assignment_not_found"
	case errors.Is(err, marketplace.ErrUnauthorized):
		return http.StatusForbidden, "not_allowed"
	}
	for _, validationError := range validationErrors {
		if errors.Is(err, validationError) {
			return http.StatusBadRequest, "invalid_request"
		}
	}
	return http.StatusInternalServerError, "storage_error"
}
