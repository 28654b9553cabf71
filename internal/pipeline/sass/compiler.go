package sass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/observability"
)

const toolName = "sass"

// Compiler turns one stylesheet entry point into a CSS file.
type Compiler interface {
	Compile(ctx context.Context, input, output string, style config.SassStyle) error
}

// CompilerResolver returns an invocable compiler path for a pinned version.
type CompilerResolver interface {
	ResolveSass(ctx context.Context, version string) (string, error)
}

// StaticResolver always resolves to Path.
type StaticResolver struct{ Path string }

func (s StaticResolver) ResolveSass(context.Context, string) (string, error) {
	if s.Path == "" {
		return "", perrors.ToolUnavailable(toolName, "", errors.New("no compiler path"))
	}
	return s.Path, nil
}

// ExecCompiler runs a dart-sass executable.
type ExecCompiler struct {
	Path string
}

// Args returns the compiler argv for one entry point.
func Args(input, output string, style config.SassStyle) []string {
	return []string{"--no-source-map", "-s", string(style), input, output}
}

// Compile runs the compiler to completion. Stderr is attached to the error
// on a non-zero exit.
func (c ExecCompiler) Compile(ctx context.Context, input, output string, style config.SassStyle) error {
	// #nosec G204 -- compiler path comes from configuration or provisioning
	cmd := exec.CommandContext(ctx, c.Path, Args(input, output, style)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	observability.Logger(ctx).Debug("Running sass", logfields.Entrypoint(input), logfields.Path(output))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.Error()
			}
			return perrors.CompilerFailed(toolName, exitErr.ExitCode(), fmt.Errorf("%s", msg)).
				WithContext("entrypoint", input)
		}
		return perrors.CompilerSpawn(toolName, err).WithContext("entrypoint", input)
	}
	return nil
}
