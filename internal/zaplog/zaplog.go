// Package zaplog adapts a zap logger to the marketplace operation hook.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

// OperationLogger emits one structured line per service operation.
type OperationLogger struct {
	logger *zap.Logger
}

// New wraps the given zap logger.
func New(logger *zap.Logger) *OperationLogger {
	return &OperationLogger{logger: logger}
}

// LogOperation implements marketplace.OperationLogger.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry marketplace.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.InstallerID.String() != "" {
		fields = append(fields, zap.String("installer_id", entry.InstallerID.String()))
	}
	if entry.BookingID.String() != "" {
		fields = append(fields, zap.String("booking_id", entry.BookingID.String()))
	}
	if entry.ProposalID.String() != "" {
		fields = append(fields, zap.String("proposal_id", entry.ProposalID.String()))
	}
	if entry.Amount.Int64() != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("operation failed", fields...)
		return
	}
	operationLogger.logger.Info("operation completed", fields...)
}
