// Package tasks implements the scheduled maintenance jobs.
package tasks

import (
	"context"
	"log/slog"
)

// MaintenanceStore is the store surface scheduled tasks need.
type MaintenanceStore interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  MaintenanceStore
}
