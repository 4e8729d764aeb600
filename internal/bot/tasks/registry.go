package tasks

import (
	"context"
)

// SQLMaintenance is the config key of the database maintenance task.
const SQLMaintenance = "sql_maintenance"

// ScheduledTaskFunc is the signature of every scheduled task. It should
// return when ctx is cancelled.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every known task keyed by the name used in
// scheduler.tasks.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		SQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
