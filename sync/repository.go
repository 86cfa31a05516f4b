package sync

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryStore persists connected repository records and owns the sync
// status transition. BeginSync is the compare-and-swap gate: it moves the
// record to syncing only from a terminal status and reports whether it won.
type RepositoryStore interface {
	Create(ctx context.Context, repo *GitRepository) error
	GetByID(ctx context.Context, id uuid.UUID) (*GitRepository, error)
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*GitRepository, error)
	GetByRepoURL(ctx context.Context, repoURL string) (*GitRepository, error)
	BeginSync(ctx context.Context, id uuid.UUID) (bool, error)
	Finish(ctx context.Context, repo *GitRepository) error
}

// DeploymentStore persists sync attempt audit records.
type DeploymentStore interface {
	Create(ctx context.Context, dep *Deployment) error
	Finalize(ctx context.Context, dep *Deployment) error
	ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]*Deployment, error)
}

// NewGitRepositoryRepository creates the generic bun-backed repository for
// GitRepository rows.
func NewGitRepositoryRepository(db *bun.DB) repository.Repository[*GitRepository] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*GitRepository]{
		NewRecord:          func() *GitRepository { return &GitRepository{} },
		GetID:              func(r *GitRepository) uuid.UUID { return r.ID },
		SetID:              func(r *GitRepository, id uuid.UUID) { r.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(r *GitRepository) string { return r.ID.String() },
	})
}

// NewDeploymentRepository creates the generic bun-backed repository for
// Deployment rows.
func NewDeploymentRepository(db *bun.DB) repository.Repository[*Deployment] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Deployment]{
		NewRecord:          func() *Deployment { return &Deployment{} },
		GetID:              func(d *Deployment) uuid.UUID { return d.ID },
		SetID:              func(d *Deployment, id uuid.UUID) { d.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(d *Deployment) string { return d.ID.String() },
	})
}
