package sync

import "errors"

var (
	// ErrSyncInProgress rejects a trigger while another attempt holds the
	// syncing state; the full-replace persist window must not overlap.
	ErrSyncInProgress = errors.New("sync: a sync is already in progress")
	// ErrAlreadyConnected enforces the one-repository-per-workspace rule.
	ErrAlreadyConnected = errors.New("sync: workspace already has a connected repository")
	// ErrRepositoryNotFound indicates no connected repository matches the lookup.
	ErrRepositoryNotFound = errors.New("sync: repository not found")
	// ErrBranchIgnored reports a push event for a branch other than the
	// connected one; the event is acknowledged but triggers nothing.
	ErrBranchIgnored = errors.New("sync: push branch does not match connected branch")
)
