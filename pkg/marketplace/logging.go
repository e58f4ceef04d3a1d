package marketplace

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing marketplace operation.
type OperationLog struct {
	Operation   string
	InstallerID InstallerID
	BookingID   BookingID
	ProposalID  ProposalID
	Amount      AmountCents
	Status      string
	Error       error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// EventSink receives notification events after a transaction commits.
// Publication is fire-and-forget: failures never roll back domain state.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// Event is a committed state transition for the notification collaborator.
type Event struct {
	Kind            string
	BookingID       string
	InstallerID     string
	ProposalID      string
	AmountCents     int64
	OccurredUnixUTC int64
}

// Event kinds published by the service.
const (
	EventLeadPurchased    = "lead.purchased"
	EventProposalCreated  = "proposal.created"
	EventProposalAccepted = "proposal.accepted"
	EventProposalRejected = "proposal.rejected"
	EventJobCompleted     = "job.completed"
)

// WithEventSink wires a sink that receives post-commit notification events.
func WithEventSink(sink EventSink) ServiceOption {
	return func(service *Service) {
		service.events = sink
	}
}
