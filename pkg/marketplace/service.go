package marketplace

import (
	"context"
	"fmt"
)

// Service contains the marketplace domain logic over a Store.
//
// Operations are grouped by concern: wallet.go (credit ledger), voucher.go
// (first-lead discount), allocation.go (lead purchase and contact reveal),
// negotiation.go (schedule proposals), assignment.go (installation
// lifecycle), projector.go (derived public status), intake.go (booking
// intake and installer onboarding).
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
	events EventSink
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// publishEvent hands a committed transition to the notification sink.
// Called only after WithTx returns nil; sink failures are the sink's problem.
func (service *Service) publishEvent(ctx context.Context, event Event) {
	if service.events == nil {
		return
	}
	if event.OccurredUnixUTC == 0 {
		event.OccurredUnixUTC = service.nowFn()
	}
	service.events.Publish(ctx, event)
}

func deriveIdempotencyKey(prefix string, parts ...string) (IdempotencyKey, error) {
	combined := prefix
	for _, part := range parts {
		combined += idempotencyKeyDelimiter + part
	}
	return NewIdempotencyKey(combined)
}
