package domain

// SyncStatus tracks the lifecycle of a workspace repository sync.
type SyncStatus string

const (
	// SyncStatusIdle marks a repository that has never been synced.
	SyncStatusIdle SyncStatus = "idle"
	// SyncStatusSyncing marks a sync attempt currently in flight.
	SyncStatusSyncing SyncStatus = "syncing"
	// SyncStatusSuccess marks the last attempt as completed.
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusError marks the last attempt as failed.
	SyncStatusError SyncStatus = "error"
)

// TerminalSyncStatuses lists the statuses a new sync may be started from.
// The compare-and-swap gate in the repository store matches against this set.
func TerminalSyncStatuses() []SyncStatus {
	return []SyncStatus{SyncStatusIdle, SyncStatusSuccess, SyncStatusError}
}

// Terminal reports whether a new sync may be started from this status.
func (s SyncStatus) Terminal() bool {
	for _, terminal := range TerminalSyncStatuses() {
		if s == terminal {
			return true
		}
	}
	return false
}

// DeploymentStatus tracks one sync attempt's audit record.
type DeploymentStatus string

const (
	DeploymentStatusBuilding DeploymentStatus = "building"
	DeploymentStatusSuccess  DeploymentStatus = "success"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)
