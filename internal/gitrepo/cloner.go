// Package gitrepo clones workspace repositories for ingestion: shallow,
// single-branch, token-authenticated checkouts into temporary directories.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/notepress/notepress/pkg/interfaces"
)

var (
	// ErrAuthFailed indicates the token was rejected or lacks repository access.
	ErrAuthFailed = errors.New("gitrepo: authentication failed")
	// ErrRepoNotFound indicates the remote repository does not exist or is not
	// reachable with the given credentials.
	ErrRepoNotFound = errors.New("gitrepo: repository not found")
	// ErrBranchNotFound indicates neither the requested branch nor a resolvable
	// default branch exists on the remote.
	ErrBranchNotFound = errors.New("gitrepo: branch not found")
)

// Config tunes clone behaviour.
type Config struct {
	Timeout time.Duration
	// MaxProgress caps captured transfer progress bytes.
	MaxProgress int
}

// Result describes a completed checkout. The caller owns Dir and must remove
// it when done.
type Result struct {
	Dir       string
	Branch    string
	CommitSHA string
	// BranchCorrected reports that the requested branch was missing and the
	// remote's default branch was cloned instead.
	BranchCorrected bool
}

// Cloner performs shallow single-branch clones.
type Cloner struct {
	cfg    Config
	logger interfaces.Logger
}

// NewCloner builds a Cloner. A zero timeout defaults to 2 minutes.
func NewCloner(cfg Config, logger interfaces.Logger) *Cloner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxProgress <= 0 {
		cfg.MaxProgress = 64 << 10
	}
	return &Cloner{cfg: cfg, logger: logger}
}

// Clone checks out repoURL at the requested branch into a fresh temporary
// directory. When the branch does not exist on the remote, the remote's
// default branch is resolved and the clone retried once; the corrected branch
// is reported in the result so the caller can persist it.
func (c *Cloner) Clone(ctx context.Context, repoURL, branch, token string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "notepress-clone-")
	if err != nil {
		return nil, fmt.Errorf("gitrepo: create clone dir: %w", err)
	}

	result, err := c.cloneBranch(ctx, dir, repoURL, branch, token)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrBranchNotFound) {
		os.RemoveAll(dir)
		return nil, err
	}

	// Requested branch is missing: ask the remote for its default branch.
	fallback, resolveErr := c.defaultBranch(ctx, repoURL, token)
	if resolveErr != nil {
		os.RemoveAll(dir)
		return nil, resolveErr
	}
	if fallback == branch {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}

	if c.logger != nil {
		c.logger.Info("gitrepo.branch_fallback", "requested", branch, "default", fallback)
	}

	result, err = c.cloneBranch(ctx, dir, repoURL, fallback, token)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	result.BranchCorrected = true
	return result, nil
}

func (c *Cloner) cloneBranch(ctx context.Context, dir, repoURL, branch, token string) (*Result, error) {
	progress := newBoundedWriter(c.cfg.MaxProgress)

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		Auth:          tokenAuth(token),
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
		Progress:      progress,
	})
	if err != nil {
		return nil, classify(err, branch)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("gitrepo: resolve HEAD: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("gitrepo.cloned", "branch", branch, "commit", head.Hash().String())
	}

	return &Result{Dir: dir, Branch: branch, CommitSHA: head.Hash().String()}, nil
}

// defaultBranch resolves the remote's symbolic HEAD without a checkout.
func (c *Cloner) defaultBranch(ctx context.Context, repoURL, token string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: tokenAuth(token)})
	if err != nil {
		return "", classify(err, "")
	}

	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
	}
	return "", fmt.Errorf("%w: remote exposes no default branch", ErrBranchNotFound)
}

// tokenAuth builds HTTPS basic auth from a personal access token. Git hosts
// accept any username when a token is supplied as the password.
func tokenAuth(token string) transport.AuthMethod {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return &http.BasicAuth{Username: "token", Password: token}
}

// classify maps transport-level failures onto the package's error taxonomy so
// the orchestrator can distinguish bad credentials from missing refs.
func classify(err error, branch string) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: %v", ErrRepoNotFound, err)
	case isBranchMissing(err):
		return fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	default:
		return fmt.Errorf("gitrepo: clone failed: %w", err)
	}
}

func isBranchMissing(err error) bool {
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return true
	}
	return strings.Contains(err.Error(), "couldn't find remote ref")
}

// boundedWriter keeps at most max bytes of transfer progress.
type boundedWriter struct {
	buf bytes.Buffer
	max int
}

func newBoundedWriter(max int) *boundedWriter {
	return &boundedWriter{max: max}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := w.max - w.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return n, nil
}
