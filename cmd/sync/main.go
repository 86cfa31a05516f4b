// Command sync connects a workspace repository when needed, triggers one
// sync, and waits for the attempt to reach a terminal state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notepress/notepress"
	"github.com/notepress/notepress/domain"
	syncpkg "github.com/notepress/notepress/sync"
)

var moduleBuilder = notepress.New

func main() {
	if err := runSync(os.Args[1:]); err != nil {
		log.Fatalf("notepress sync: %v", err)
	}
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("notepress-sync", flag.ExitOnError)
	workspace := fs.String("workspace", "", "Workspace id (uuid) to sync")
	repoURL := fs.String("repo-url", "", "Repository URL to connect when the workspace has none yet")
	branch := fs.String("branch", "", "Branch to track (defaults to main on first connect)")
	token := fs.String("token", "", "HTTPS access token for the repository")
	driver := fs.String("db-driver", "sqlite", "Database driver: sqlite or postgres")
	dsn := fs.String("db-dsn", "file:notepress.db?cache=shared&_fk=1", "Database DSN")
	renderer := fs.String("renderer", "", "External HTML export tool command")
	rendererArgs := fs.String("renderer-args", "", "Comma separated extra arguments for the export tool")
	wait := fs.Bool("wait", true, "Poll until the sync reaches a terminal state")
	timeout := fs.Duration("timeout", 15*time.Minute, "Upper bound for the whole run")

	if err := fs.Parse(args); err != nil {
		return err
	}

	workspaceID, err := uuid.Parse(*workspace)
	if err != nil {
		return fmt.Errorf("parse workspace: %w", err)
	}

	cfg := notepress.DefaultConfig()
	cfg.Database.Driver = *driver
	cfg.Database.DSN = *dsn
	cfg.Renderer.Command = *renderer
	if trimmed := strings.TrimSpace(*rendererArgs); trimmed != "" {
		cfg.Renderer.Args = strings.Split(trimmed, ",")
	}

	module, err := moduleBuilder(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *repoURL != "" {
		_, err := module.Syncs.Connect(ctx, syncpkg.ConnectInput{
			WorkspaceID: workspaceID,
			RepoURL:     *repoURL,
			Branch:      *branch,
			Token:       *token,
		})
		switch {
		case err == nil:
			fmt.Fprintf(os.Stdout, "connected %s\n", *repoURL)
		case errors.Is(err, syncpkg.ErrAlreadyConnected):
			// Already registered: just trigger.
		default:
			return fmt.Errorf("connect repository: %w", err)
		}
	}

	if err := module.Syncs.Trigger(ctx, workspaceID); err != nil {
		return fmt.Errorf("trigger sync: %w", err)
	}
	fmt.Fprintln(os.Stdout, "sync triggered")

	if !*wait {
		return nil
	}
	return waitForSync(ctx, module, workspaceID)
}

func waitForSync(ctx context.Context, module *notepress.Module, workspaceID uuid.UUID) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for sync: %w", ctx.Err())
		case <-ticker.C:
		}

		repo, err := module.Syncs.Status(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("poll status: %w", err)
		}
		if repo.SyncStatus == domain.SyncStatusSyncing {
			continue
		}

		fmt.Fprintf(os.Stdout, "sync finished: %s\n", repo.SyncStatus)
		if repo.SyncStatus == domain.SyncStatusError {
			if repo.ErrorLog != "" {
				fmt.Fprintln(os.Stderr, repo.ErrorLog)
			}
			return errors.New("sync failed")
		}
		return nil
	}
}
