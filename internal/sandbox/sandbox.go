// Package sandbox runs model-written Python and installs packages inside the
// solver workspace.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/petasbytes/solver-agent/internal/fsops"
)

const scriptsDir = "scripts"

// Options configures a Runner.
type Options struct {
	PythonCommand  string // e.g. "uv run python"; the script path is appended
	InstallCommand string // e.g. "uv add"; package names are appended
	Timeout        time.Duration
	MaxOutput      int // runes kept per stream; 0 keeps everything
}

// ExecResult carries output and status code of one command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes commands with the workspace as working directory.
type Runner struct {
	ws      *fsops.Workspace
	python  []string
	install []string
	opts    Options
	logger  *zap.Logger
}

// New parses the command templates and returns a Runner bound to ws.
func New(ws *fsops.Workspace, opts Options, logger *zap.Logger) (*Runner, error) {
	if ws == nil {
		return nil, errors.New("workspace is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	python, err := splitCommand("python command", opts.PythonCommand)
	if err != nil {
		return nil, err
	}
	install, err := splitCommand("install command", opts.InstallCommand)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Runner{ws: ws, python: python, install: install, opts: opts, logger: logger}, nil
}

func splitCommand(what, s string) ([]string, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", what, s, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s is empty", what)
	}
	return args, nil
}

// RunPython writes code to a fresh script under the workspace, runs it and
// removes the script. A non-zero exit status is reported in the result, not
// as an error.
func (r *Runner) RunPython(ctx context.Context, code string) (ExecResult, error) {
	rel := filepath.Join(scriptsDir, uuid.NewString()+".py")
	abs, err := r.ws.WriteFile(rel, []byte(code))
	if err != nil {
		return ExecResult{}, fmt.Errorf("write script: %w", err)
	}
	defer func() {
		if err := os.Remove(abs); err != nil {
			r.logger.Warn("remove script", zap.String("path", abs), zap.Error(err))
		}
	}()
	args := append(append([]string{}, r.python[1:]...), abs)
	return r.exec(ctx, r.python[0], args...)
}

// Install adds packages to the workspace environment.
func (r *Runner) Install(ctx context.Context, packages []string) (ExecResult, error) {
	if len(packages) == 0 {
		return ExecResult{}, errors.New("no dependencies given")
	}
	for _, p := range packages {
		if err := validatePackage(p); err != nil {
			return ExecResult{}, err
		}
	}
	args := append(append([]string{}, r.install[1:]...), packages...)
	return r.exec(ctx, r.install[0], args...)
}

// validatePackage rejects names that would be read as flags or split into
// several arguments.
func validatePackage(p string) error {
	switch {
	case p == "":
		return errors.New("empty dependency name")
	case strings.HasPrefix(p, "-"):
		return fmt.Errorf("dependency %q looks like a flag", p)
	case strings.ContainsAny(p, " \t\r\n"):
		return fmt.Errorf("dependency %q contains whitespace", p)
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, command string, args ...string) (ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.ws.Root()
	// Children that outlive a killed parent must not hold the pipes open.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := ExecResult{
		Stdout: clamp(stdout.String(), r.opts.MaxOutput),
		Stderr: clamp(stderr.String(), r.opts.MaxOutput),
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.ExitCode = -1
		r.logger.Warn("command timed out", zap.String("command", command), zap.Duration("timeout", r.opts.Timeout))
		return res, fmt.Errorf("%s: %w", command, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("%s: %w", command, err)
	}

	r.logger.Debug("command finished",
		zap.String("command", command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

const truncationNote = "\n-- output truncated --\n"

func clamp(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + truncationNote
}
