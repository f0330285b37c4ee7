package notifications

import (
	"context"

	"github.com/trendzee/live-trends/internal/models"
)

// NotificationInterface defines the contract for run summary notifiers
type NotificationInterface interface {
	SendRunReport(ctx context.Context, report *models.RunReport) error
}
