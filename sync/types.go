package sync

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/notepress/notepress/domain"
)

// GitRepository is the one-per-workspace record of a connected content
// repository and its current sync state.
type GitRepository struct {
	bun.BaseModel `bun:"table:git_repositories,alias:gr"`

	ID          uuid.UUID `bun:",pk,type:uuid"                           json:"id"`
	WorkspaceID uuid.UUID `bun:"workspace_id,notnull,unique,type:uuid"   json:"workspace_id"`
	RepoURL     string    `bun:"repo_url,notnull"                        json:"repo_url"`
	Branch      string    `bun:"branch,notnull"                          json:"branch"`
	// Token is the HTTPS access token used for clone and ls-remote. It is
	// persisted but must never appear in logs or API payloads.
	Token        string            `bun:"token"                           json:"-"`
	SyncStatus   domain.SyncStatus `bun:"sync_status,notnull,default:'idle'" json:"sync_status"`
	LastSyncedAt *time.Time        `bun:"last_synced_at,nullzero"         json:"last_synced_at,omitempty"`
	ErrorLog     string            `bun:"error_log"                       json:"error_log,omitempty"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time         `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Deployment is the immutable-after-completion audit record of one sync
// attempt. History is retained indefinitely.
type Deployment struct {
	bun.BaseModel `bun:"table:deployments,alias:d"`

	ID           uuid.UUID               `bun:",pk,type:uuid"                 json:"id"`
	RepositoryID uuid.UUID               `bun:"repository_id,notnull,type:uuid" json:"repository_id"`
	WorkspaceID  uuid.UUID               `bun:"workspace_id,notnull,type:uuid"  json:"workspace_id"`
	CommitSHA    string                  `bun:"commit_sha,notnull"            json:"commit_sha"`
	Branch       string                  `bun:"branch,notnull"                json:"branch"`
	Status       domain.DeploymentStatus `bun:"status,notnull"                json:"status"`
	BuildLog     []string                `bun:"build_log,type:jsonb"          json:"build_log"`
	ErrorLog     string                  `bun:"error_log"                     json:"error_log,omitempty"`
	StartedAt    time.Time               `bun:"started_at,nullzero,default:current_timestamp" json:"started_at"`
	DeployedAt   *time.Time              `bun:"deployed_at,nullzero"          json:"deployed_at,omitempty"`
}
