package sync

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"

	"github.com/notepress/notepress/domain"
)

const repositoriesDDL = `
CREATE TABLE git_repositories (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL UNIQUE,
    repo_url TEXT NOT NULL,
    branch TEXT NOT NULL,
    token TEXT,
    sync_status TEXT NOT NULL DEFAULT 'idle',
    last_synced_at TIMESTAMP,
    error_log TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const deploymentsDDL = `
CREATE TABLE deployments (
    id TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL,
    commit_sha TEXT NOT NULL,
    branch TEXT NOT NULL,
    status TEXT NOT NULL,
    build_log TEXT,
    error_log TEXT,
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deployed_at TIMESTAMP
)`

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{repositoriesDDL, deploymentsDDL} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply ddl: %v", err)
		}
	}
	return db
}

func storedRepo(t *testing.T, store *BunRepositoryStore) *GitRepository {
	t.Helper()
	repo := &GitRepository{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		RepoURL:     "https://example.com/notes.git",
		Branch:      "main",
		SyncStatus:  domain.SyncStatusIdle,
	}
	if err := store.Create(context.Background(), repo); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return repo
}

func TestBeginSyncCompareAndSwap(t *testing.T) {
	store := NewBunRepositoryStore(openTestDB(t))
	ctx := context.Background()
	repo := storedRepo(t, store)

	ok, err := store.BeginSync(ctx, repo.ID)
	if err != nil || !ok {
		t.Fatalf("BeginSync from idle = (%v, %v), want win", ok, err)
	}

	// A second attempt while syncing must lose the gate.
	ok, err = store.BeginSync(ctx, repo.ID)
	if err != nil {
		t.Fatalf("BeginSync: %v", err)
	}
	if ok {
		t.Fatal("BeginSync must not win while a sync is in flight")
	}

	// After the attempt finishes, a new sync may start again.
	repo.SyncStatus = domain.SyncStatusError
	repo.ErrorLog = "boom"
	if err := store.Finish(ctx, repo); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	ok, err = store.BeginSync(ctx, repo.ID)
	if err != nil || !ok {
		t.Fatalf("BeginSync from error = (%v, %v), want win", ok, err)
	}
}

func TestBeginSyncClearsPreviousErrorLog(t *testing.T) {
	store := NewBunRepositoryStore(openTestDB(t))
	ctx := context.Background()
	repo := storedRepo(t, store)

	repo.SyncStatus = domain.SyncStatusError
	repo.ErrorLog = "clone failed: authentication required"
	if err := store.Finish(ctx, repo); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ok, err := store.BeginSync(ctx, repo.ID)
	if err != nil || !ok {
		t.Fatalf("BeginSync = (%v, %v), want win", ok, err)
	}

	loaded, err := store.GetByID(ctx, repo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.SyncStatus != domain.SyncStatusSyncing {
		t.Fatalf("expected syncing status, got %s", loaded.SyncStatus)
	}
	if loaded.ErrorLog != "" {
		t.Fatalf("starting a sync must clear the stale error log, got %q", loaded.ErrorLog)
	}
}

func TestFinishPersistsOutcome(t *testing.T) {
	store := NewBunRepositoryStore(openTestDB(t))
	ctx := context.Background()
	repo := storedRepo(t, store)

	now := time.Now().UTC().Truncate(time.Second)
	repo.SyncStatus = domain.SyncStatusSuccess
	repo.Branch = "develop"
	repo.LastSyncedAt = &now
	repo.ErrorLog = ""
	if err := store.Finish(ctx, repo); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	loaded, err := store.GetByID(ctx, repo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.SyncStatus != domain.SyncStatusSuccess {
		t.Fatalf("status not persisted: %s", loaded.SyncStatus)
	}
	if loaded.Branch != "develop" {
		t.Fatalf("corrected branch not persisted: %s", loaded.Branch)
	}
	if loaded.LastSyncedAt == nil {
		t.Fatal("last synced timestamp not persisted")
	}
}

func TestRepositoryLookups(t *testing.T) {
	store := NewBunRepositoryStore(openTestDB(t))
	ctx := context.Background()
	repo := storedRepo(t, store)

	byWorkspace, err := store.GetByWorkspace(ctx, repo.WorkspaceID)
	if err != nil {
		t.Fatalf("GetByWorkspace: %v", err)
	}
	if byWorkspace.ID != repo.ID {
		t.Fatalf("unexpected repository %s", byWorkspace.ID)
	}

	byURL, err := store.GetByRepoURL(ctx, repo.RepoURL)
	if err != nil {
		t.Fatalf("GetByRepoURL: %v", err)
	}
	if byURL.ID != repo.ID {
		t.Fatalf("unexpected repository %s", byURL.ID)
	}

	if _, err := store.GetByWorkspace(ctx, uuid.New()); !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	db := openTestDB(t)
	repos := NewBunRepositoryStore(db)
	deployments := NewBunDeploymentStore(db)
	ctx := context.Background()
	repo := storedRepo(t, repos)

	older := &Deployment{
		ID:           uuid.New(),
		RepositoryID: repo.ID,
		WorkspaceID:  repo.WorkspaceID,
		CommitSHA:    "aaa",
		Branch:       "main",
		Status:       domain.DeploymentStatusBuilding,
		StartedAt:    time.Now().UTC().Add(-time.Hour),
	}
	newer := &Deployment{
		ID:           uuid.New(),
		RepositoryID: repo.ID,
		WorkspaceID:  repo.WorkspaceID,
		CommitSHA:    "bbb",
		Branch:       "main",
		Status:       domain.DeploymentStatusBuilding,
		StartedAt:    time.Now().UTC(),
	}
	for _, dep := range []*Deployment{older, newer} {
		if err := deployments.Create(ctx, dep); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	now := time.Now().UTC()
	newer.Status = domain.DeploymentStatusSuccess
	newer.BuildLog = []string{"cloned commit bbb", "sync complete"}
	newer.DeployedAt = &now
	if err := deployments.Finalize(ctx, newer); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	history, err := deployments.ListByRepository(ctx, repo.ID)
	if err != nil {
		t.Fatalf("ListByRepository: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(history))
	}
	if history[0].CommitSHA != "bbb" {
		t.Fatalf("history must be newest first, got %s", history[0].CommitSHA)
	}
	if history[0].Status != domain.DeploymentStatusSuccess {
		t.Fatalf("finalized status not persisted: %s", history[0].Status)
	}
	if len(history[0].BuildLog) != 2 {
		t.Fatalf("build log did not round-trip: %#v", history[0].BuildLog)
	}
}
