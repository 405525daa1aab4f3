package interpreter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellOutput      = 64 << 10
)

// ShellConfig configures a ShellProcessor.
type ShellConfig struct {
	WorkDir         string
	Timeout         time.Duration
	AllowedCommands []string // empty = any command
}

// ShellProcessor runs scripts with an embedded POSIX shell interpreter.
// External commands are checked against an allow-list; builtins always run.
type ShellProcessor struct {
	workDir string
	timeout time.Duration
	allowed map[string]bool
}

// NewShellProcessor creates a ShellProcessor.
func NewShellProcessor(cfg ShellConfig) *ShellProcessor {
	p := &ShellProcessor{
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
	}
	if p.timeout <= 0 {
		p.timeout = defaultShellTimeout
	}
	if len(cfg.AllowedCommands) > 0 {
		p.allowed = make(map[string]bool, len(cfg.AllowedCommands))
		for _, c := range cfg.AllowedCommands {
			p.allowed[c] = true
		}
	}
	return p
}

func (p *ShellProcessor) Name() string { return "shell" }

func (p *ShellProcessor) Execute(ctx context.Context, sc ScriptContext) (string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(sc.Script), sc.Agent)
	if err != nil {
		return "", fmt.Errorf("parse script: %w", err)
	}

	out := &cappedBuffer{max: maxShellOutput}
	opts := []interp.RunnerOption{
		interp.StdIO(nil, out, out),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.ExecHandlers(p.allowList),
	}
	if p.workDir != "" {
		dir, err := filepath.Abs(p.workDir)
		if err != nil {
			return "", fmt.Errorf("work dir: %w", err)
		}
		opts = append(opts, interp.Dir(dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return "", fmt.Errorf("create shell: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = runner.Run(ctx, file)
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("script timed out after %s", p.timeout)
	}
	if err != nil {
		return out.String(), fmt.Errorf("run script: %w", err)
	}
	return out.String(), nil
}

func (p *ShellProcessor) allowList(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if p.allowed != nil && len(args) > 0 && !p.allowed[filepath.Base(args[0])] {
			hc := interp.HandlerCtx(ctx)
			fmt.Fprintf(hc.Stderr, "%s: command not allowed\n", args[0])
			return interp.NewExitStatus(126)
		}
		return next(ctx, args)
	}
}

// cappedBuffer keeps the first max bytes written to it.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room < len(p) {
		if room > 0 {
			b.buf.Write(p[:room])
		}
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + "\n... (truncated)"
	}
	return b.buf.String()
}
