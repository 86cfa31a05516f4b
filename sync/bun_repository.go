package sync

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/notepress/notepress/domain"
)

// BunRepositoryStore implements RepositoryStore over bun. Lookups go through
// the generic repository; status writes use raw statements because the
// compare-and-swap semantics need the affected-row count.
type BunRepositoryStore struct {
	db   *bun.DB
	repo repository.Repository[*GitRepository]
}

// NewBunRepositoryStore creates the store.
func NewBunRepositoryStore(db *bun.DB) *BunRepositoryStore {
	return &BunRepositoryStore{db: db, repo: NewGitRepositoryRepository(db)}
}

func (s *BunRepositoryStore) Create(ctx context.Context, repo *GitRepository) error {
	if _, err := s.db.NewInsert().Model(repo).Exec(ctx); err != nil {
		return fmt.Errorf("sync: create repository record: %w", err)
	}
	return nil
}

func (s *BunRepositoryStore) GetByID(ctx context.Context, id uuid.UUID) (*GitRepository, error) {
	record, err := s.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapNotFound(err, id.String())
	}
	return record, nil
}

func (s *BunRepositoryStore) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*GitRepository, error) {
	return s.getOne(ctx, "workspace_id", workspaceID.String())
}

func (s *BunRepositoryStore) GetByRepoURL(ctx context.Context, repoURL string) (*GitRepository, error) {
	return s.getOne(ctx, "repo_url", repoURL)
}

func (s *BunRepositoryStore) getOne(ctx context.Context, column, value string) (*GitRepository, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias."+column+" = ?", value)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapNotFound(err, value)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s=%s", ErrRepositoryNotFound, column, value)
	}
	return records[0], nil
}

// BeginSync is the compare-and-swap transition into syncing. It succeeds only
// when the current status is terminal, which is what protects the
// delete-then-insert window of a running ingestion. Winning the gate also
// clears the error log left behind by a previous failed attempt.
func (s *BunRepositoryStore) BeginSync(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*GitRepository)(nil)).
		Set("sync_status = ?", domain.SyncStatusSyncing).
		Set("error_log = ''").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("sync_status IN (?)", bun.In(domain.TerminalSyncStatuses())).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("sync: begin sync: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sync: begin sync result: %w", err)
	}
	return rows == 1, nil
}

// Finish persists the attempt outcome: status, possibly corrected branch,
// last sync time, and error log.
func (s *BunRepositoryStore) Finish(ctx context.Context, repo *GitRepository) error {
	_, err := s.db.NewUpdate().
		Model(repo).
		Column("sync_status", "branch", "last_synced_at", "error_log").
		Set("updated_at = CURRENT_TIMESTAMP").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sync: finish sync: %w", err)
	}
	return nil
}

// BunDeploymentStore implements DeploymentStore over bun.
type BunDeploymentStore struct {
	db   *bun.DB
	repo repository.Repository[*Deployment]
}

// NewBunDeploymentStore creates the store.
func NewBunDeploymentStore(db *bun.DB) *BunDeploymentStore {
	return &BunDeploymentStore{db: db, repo: NewDeploymentRepository(db)}
}

func (s *BunDeploymentStore) Create(ctx context.Context, dep *Deployment) error {
	if _, err := s.db.NewInsert().Model(dep).Exec(ctx); err != nil {
		return fmt.Errorf("sync: create deployment: %w", err)
	}
	return nil
}

// Finalize writes the terminal state of a deployment. Records are immutable
// afterwards; only the outcome columns are touched.
func (s *BunDeploymentStore) Finalize(ctx context.Context, dep *Deployment) error {
	_, err := s.db.NewUpdate().
		Model(dep).
		Column("status", "build_log", "error_log", "deployed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sync: finalize deployment: %w", err)
	}
	return nil
}

// ListByRepository returns a repository's deployment history, newest first.
func (s *BunDeploymentStore) ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]*Deployment, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.repository_id = ?", repositoryID).
				OrderExpr("?TableAlias.started_at DESC")
		}),
	)
	if err != nil {
		return nil, mapNotFound(err, repositoryID.String())
	}
	return records, nil
}

func mapNotFound(err error, key string) error {
	if errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return fmt.Errorf("%w: %s", ErrRepositoryNotFound, key)
	}
	return err
}
