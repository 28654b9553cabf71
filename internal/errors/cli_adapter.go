package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Exit codes surfaced by the CLI. A partially successful run is distinguishable
// from a fully failed one.
const (
	ExitOK             = 0
	ExitGeneral        = 1
	ExitUsage          = 2
	ExitPartial        = 3
	ExitBuildFailed    = 4
	ExitConfig         = 7
	ExitExternal       = 8
	ExitNotImplemented = 9
	ExitInternal       = 10
	ExitLocked         = 11
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	if pe, ok := As(err); ok {
		return a.exitCodeFromPackler(pe)
	}

	return ExitGeneral
}

// exitCodeFromPackler maps PacklerError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromPackler(err *PacklerError) int {
	switch err.Category {
	case CategoryValidation, CategoryInput:
		return ExitUsage
	case CategoryPartial:
		return ExitPartial
	case CategoryBuild, CategoryFileSystem, CategorySerialization:
		return ExitBuildFailed
	case CategoryConfig:
		return ExitConfig
	case CategoryTool, CategoryUpload:
		return ExitExternal
	case CategoryNotImplemented:
		return ExitNotImplemented
	case CategoryLock:
		return ExitLocked
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if pe, ok := As(err); ok {
		return a.formatPackler(pe)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatPackler formats a PacklerError for display.
func (a *CLIErrorAdapter) formatPackler(err *PacklerError) string {
	if a.verbose {
		return err.Error()
	}

	switch err.Category {
	case CategoryConfig, CategoryValidation, CategoryNotImplemented:
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if pe, ok := As(err); ok {
		return pe.Category == CategoryInternal || pe.Severity == SeverityFatal
	}

	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if pe, ok := As(err); ok {
		level := a.slogLevelFromSeverity(pe.Severity)
		attrs := []slog.Attr{
			slog.String("category", string(pe.Category)),
		}
		for k, v := range pe.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
		if pe.Cause != nil {
			attrs = append(attrs, slog.String("error", pe.Cause.Error()))
		}

		a.logger.LogAttrs(context.Background(), level, pe.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// slogLevelFromSeverity converts PacklerError severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
