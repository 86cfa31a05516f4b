// Package sync coordinates one workspace repository's publish pipeline:
// clone, render, ingest, report. It owns the repository status state machine
// and the deployment audit history.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/notepress/notepress/domain"
	"github.com/notepress/notepress/ingest"
	"github.com/notepress/notepress/internal/gitrepo"
	"github.com/notepress/notepress/pkg/interfaces"
)

var (
	ErrReposRequired       = errors.New("sync: repository store is required")
	ErrDeploymentsRequired = errors.New("sync: deployment store is required")
	ErrClonerRequired      = errors.New("sync: cloner is required")
	ErrIngestorRequired    = errors.New("sync: ingestor is required")
)

// Cloner checks out a repository branch. Satisfied by gitrepo.Cloner.
type Cloner interface {
	Clone(ctx context.Context, repoURL, branch, token string) (*gitrepo.Result, error)
}

// Ingestor assembles and persists the workspace graph from a checkout.
// Satisfied by ingest.Service.
type Ingestor interface {
	Run(ctx context.Context, workspaceID uuid.UUID, repoDir string, progress ingest.ProgressFunc) (*ingest.Result, error)
}

// Config carries the orchestrator dependencies.
type Config struct {
	Repos       RepositoryStore
	Deployments DeploymentStore
	Cloner      Cloner
	Ingestor    Ingestor
	Logger      interfaces.Logger
	// Timeout bounds one whole sync attempt. Defaults to 10 minutes.
	Timeout time.Duration
}

// Service is the sync orchestrator.
type Service struct {
	repos       RepositoryStore
	deployments DeploymentStore
	cloner      Cloner
	ingestor    Ingestor
	logger      interfaces.Logger
	timeout     time.Duration
}

// NewService builds the orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Repos == nil {
		return nil, ErrReposRequired
	}
	if cfg.Deployments == nil {
		return nil, ErrDeploymentsRequired
	}
	if cfg.Cloner == nil {
		return nil, ErrClonerRequired
	}
	if cfg.Ingestor == nil {
		return nil, ErrIngestorRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Service{
		repos:       cfg.Repos,
		deployments: cfg.Deployments,
		cloner:      cfg.Cloner,
		ingestor:    cfg.Ingestor,
		logger:      cfg.Logger,
		timeout:     cfg.Timeout,
	}, nil
}

// ConnectInput is the first-time repository registration payload.
type ConnectInput struct {
	WorkspaceID uuid.UUID
	RepoURL     string
	Branch      string
	Token       string
}

// Validate enforces the registration contract.
func (in ConnectInput) Validate() error {
	return validation.Errors{
		"workspace_id": validation.Validate(in.WorkspaceID.String(), validation.Required, is.UUID.Error("workspace id must be a uuid")),
		"repo_url":     validation.Validate(in.RepoURL, validation.Required, is.URL),
		"branch":       validation.Validate(in.Branch, validation.Length(0, 255)),
	}.Filter()
}

// Connect registers a workspace's repository. One repository per workspace;
// a second registration fails with ErrAlreadyConnected. The record starts
// idle with an empty sync history.
func (s *Service) Connect(ctx context.Context, in ConnectInput) (*GitRepository, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("sync: invalid connect input: %w", err)
	}

	if _, err := s.repos.GetByWorkspace(ctx, in.WorkspaceID); err == nil {
		return nil, ErrAlreadyConnected
	} else if !errors.Is(err, ErrRepositoryNotFound) {
		return nil, err
	}

	branch := strings.TrimSpace(in.Branch)
	if branch == "" {
		branch = "main"
	}

	repo := &GitRepository{
		ID:          uuid.New(),
		WorkspaceID: in.WorkspaceID,
		RepoURL:     in.RepoURL,
		Branch:      branch,
		Token:       in.Token,
		SyncStatus:  domain.SyncStatusIdle,
	}
	if err := s.repos.Create(ctx, repo); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("sync.repository_connected", "workspace_id", in.WorkspaceID.String(), "branch", branch)
	}
	return repo, nil
}

// Status returns the workspace repository record for polling.
func (s *Service) Status(ctx context.Context, workspaceID uuid.UUID) (*GitRepository, error) {
	return s.repos.GetByWorkspace(ctx, workspaceID)
}

// History returns the workspace's deployment records, newest first.
func (s *Service) History(ctx context.Context, workspaceID uuid.UUID) ([]*Deployment, error) {
	repo, err := s.repos.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.deployments.ListByRepository(ctx, repo.ID)
}

// Trigger starts a sync for the workspace and returns immediately; progress
// is observed by polling Status. A trigger while a sync is in flight fails
// with ErrSyncInProgress.
func (s *Service) Trigger(ctx context.Context, workspaceID uuid.UUID) error {
	repo, err := s.repos.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	return s.start(ctx, repo)
}

// HandlePush reacts to a push webhook. Pushes to branches other than the
// connected one are acknowledged and ignored.
func (s *Service) HandlePush(ctx context.Context, repoURL, branch string) error {
	repo, err := s.repos.GetByRepoURL(ctx, repoURL)
	if err != nil {
		return err
	}
	if branch != "" && branch != repo.Branch {
		if s.logger != nil {
			s.logger.Debug("sync.push_ignored", "pushed", branch, "connected", repo.Branch)
		}
		return ErrBranchIgnored
	}
	return s.start(ctx, repo)
}

// start wins the compare-and-swap gate and launches the attempt in the
// background. The attempt runs on its own context: the trigger request's
// lifetime must not cancel a sync already underway.
func (s *Service) start(ctx context.Context, repo *GitRepository) error {
	ok, err := s.repos.BeginSync(ctx, repo.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSyncInProgress
	}
	go s.run(context.Background(), repo)
	return nil
}

// run executes one sync attempt end to end. Any failure lands the repository
// in error state; ingestion failures are additionally recorded on the
// deployment. The clone directory is removed on every exit path.
func (s *Service) run(ctx context.Context, repo *GitRepository) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := NewBuildLog()
	log.Logf("sync started for %s (branch %s)", repo.RepoURL, repo.Branch)

	checkout, err := s.cloner.Clone(ctx, repo.RepoURL, repo.Branch, repo.Token)
	if err != nil {
		// Clone failed before a commit could be resolved: no deployment
		// record is created, only the repository reflects the failure.
		log.Logf("clone failed: %v", err)
		s.finishRepo(ctx, repo, domain.SyncStatusError, cloneFailureMessage(err))
		return
	}
	defer os.RemoveAll(checkout.Dir)

	if checkout.BranchCorrected {
		log.Logf("branch %s not found, using default branch %s", repo.Branch, checkout.Branch)
		repo.Branch = checkout.Branch
	}
	log.Logf("cloned commit %s", checkout.CommitSHA)

	dep := &Deployment{
		ID:           uuid.New(),
		RepositoryID: repo.ID,
		WorkspaceID:  repo.WorkspaceID,
		CommitSHA:    checkout.CommitSHA,
		Branch:       checkout.Branch,
		Status:       domain.DeploymentStatusBuilding,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.deployments.Create(ctx, dep); err != nil {
		log.Logf("deployment record failed: %v", err)
		s.finishRepo(ctx, repo, domain.SyncStatusError, err.Error())
		return
	}

	result, err := s.ingestor.Run(ctx, repo.WorkspaceID, checkout.Dir, log.Logf)
	if err != nil {
		log.Logf("ingestion failed: %v", err)
		s.finishDeployment(ctx, dep, domain.DeploymentStatusFailed, log, err.Error())
		s.finishRepo(ctx, repo, domain.SyncStatusError, err.Error())
		return
	}

	log.Logf("sync complete: %d pages, %d blocks", result.Pages, result.Blocks)
	s.finishDeployment(ctx, dep, domain.DeploymentStatusSuccess, log, "")
	s.finishRepo(ctx, repo, domain.SyncStatusSuccess, "")
}

func (s *Service) finishDeployment(ctx context.Context, dep *Deployment, status domain.DeploymentStatus, log *BuildLog, errorLog string) {
	now := time.Now().UTC()
	dep.Status = status
	dep.BuildLog = log.Lines()
	dep.ErrorLog = errorLog
	dep.DeployedAt = &now
	if err := s.deployments.Finalize(ctx, dep); err != nil && s.logger != nil {
		s.logger.Error("sync.finalize_deployment_failed", "deployment_id", dep.ID.String(), "error", err)
	}
}

func (s *Service) finishRepo(ctx context.Context, repo *GitRepository, status domain.SyncStatus, errorLog string) {
	repo.SyncStatus = status
	repo.ErrorLog = errorLog
	if status == domain.SyncStatusSuccess {
		now := time.Now().UTC()
		repo.LastSyncedAt = &now
	}
	if err := s.repos.Finish(ctx, repo); err != nil && s.logger != nil {
		s.logger.Error("sync.finish_repository_failed", "repository_id", repo.ID.String(), "error", err)
	}
	if s.logger != nil {
		s.logger.Info("sync.finished", "repository_id", repo.ID.String(), "status", string(status))
	}
}

// cloneFailureMessage turns clone taxonomy errors into operator-actionable
// status text.
func cloneFailureMessage(err error) string {
	switch {
	case errors.Is(err, gitrepo.ErrAuthFailed):
		return fmt.Sprintf("%v: verify the access token has read permission for the repository", err)
	case errors.Is(err, gitrepo.ErrRepoNotFound):
		return fmt.Sprintf("%v: verify the repository URL", err)
	case errors.Is(err, gitrepo.ErrBranchNotFound):
		return fmt.Sprintf("%v: verify the configured branch exists", err)
	default:
		return err.Error()
	}
}
