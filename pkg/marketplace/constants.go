package marketplace

const (
	operationCreateBooking    = "create_booking"
	operationOnboardInstaller = "onboard_installer"
	operationCredit           = "credit"
	operationDebit            = "debit"
	operationPurchaseLead     = "purchase_lead"
	operationPropose          = "propose"
	operationAccept           = "accept"
	operationReject           = "reject"
	operationStartJob         = "start_job"
	operationCompleteJob      = "complete_job"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	idempotencyKeyDelimiter   = ":"
	idempotencyPrefixPurchase = "purchase"
)
