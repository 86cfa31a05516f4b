package logging

import (
	"context"
	"strings"

	"github.com/notepress/notepress/pkg/interfaces"
)

const (
	rootModule   = "notepress"
	syncModule   = "notepress.sync"
	ingestModule = "notepress.ingest"
	graphModule  = "notepress.graph"
	renderModule = "notepress.render"
)

const (
	fieldWorkspace = "workspace_id"
	fieldPage      = "page_name"
	fieldBranch    = "branch"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// SyncLogger returns the logger namespace reserved for the sync orchestrator.
func SyncLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncModule)
}

// IngestLogger returns the logger namespace reserved for the graph assembler.
func IngestLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, ingestModule)
}

// GraphLogger returns the logger namespace reserved for traversal services.
func GraphLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, graphModule)
}

// RenderLogger returns the logger namespace reserved for the renderer adapter.
func RenderLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, renderModule)
}

// WithSyncContext enriches the provided logger with common sync fields such as
// workspace, page, and branch. Empty values are ignored.
func WithSyncContext(logger interfaces.Logger, workspace, page, branch string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(workspace); trimmed != "" {
		fields[fieldWorkspace] = trimmed
	}
	if trimmed := strings.TrimSpace(page); trimmed != "" {
		fields[fieldPage] = trimmed
	}
	if trimmed := strings.TrimSpace(branch); trimmed != "" {
		fields[fieldBranch] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
