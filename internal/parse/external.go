package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// DefaultToolTimeout bounds one external parser invocation.
const DefaultToolTimeout = 30 * time.Second

// maxStderr caps the stderr excerpt carried in a diagnostic.
const maxStderr = 240

// ToolCommand is an external parser: Command is run with Args followed by the
// absolute file path and must print one JSON syntax tree on stdout.
type ToolCommand struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// ExternalPlugin parses a language by running an external tool per file. When
// the tool is missing or times out and the heuristic fallback is enabled, the
// file is scanned line by line instead.
type ExternalPlugin struct {
	lang      syntax.Language
	tool      ToolCommand
	timeout   time.Duration
	heuristic bool
}

var (
	_ Plugin       = (*ExternalPlugin)(nil)
	_ Availability = (*ExternalPlugin)(nil)
)

// NewExternalPlugin creates a plugin for lang backed by tool.
func NewExternalPlugin(lang syntax.Language, tool ToolCommand, timeout time.Duration, heuristic bool) *ExternalPlugin {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ExternalPlugin{lang: lang, tool: tool, timeout: timeout, heuristic: heuristic}
}

func (p *ExternalPlugin) Language() syntax.Language { return p.lang }

func (p *ExternalPlugin) CanParse(path string) bool {
	lang, ok := syntax.LanguageForPath(path)
	return ok && lang == p.lang
}

// Available reports whether the tool can be found. A missing tool with the
// heuristic fallback enabled is still reported, since results are degraded.
func (p *ExternalPlugin) Available() error {
	_, err := p.lookPath()
	if err != nil && p.heuristic {
		return fmt.Errorf("%w (heuristic fallback active)", err)
	}
	return err
}

func (p *ExternalPlugin) lookPath() (string, error) {
	if p.tool.Command == "" {
		return "", fmt.Errorf("%w: no %s parser command configured", ErrToolMissing, p.lang)
	}
	path, err := exec.LookPath(p.tool.Command)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolMissing, p.tool.Command, err)
	}
	return path, nil
}

// Parse runs the tool on src.Path and decodes its output.
func (p *ExternalPlugin) Parse(ctx context.Context, src SourceUnit) ParsedUnit {
	tree, err := p.run(ctx, src)
	if err == nil {
		return succeeded(src, tree)
	}
	if p.heuristic && (errors.Is(err, ErrToolMissing) || errors.Is(err, ErrToolTimeout)) {
		pu := succeeded(src, ScanHeuristic(p.lang, src.RelPath, src.Content))
		pu.Heuristic = true
		pu.Diagnostic = fmt.Sprintf("heuristic parse used: %v", err)
		return pu
	}
	return failed(src, "%v", err)
}

func (p *ExternalPlugin) run(ctx context.Context, src SourceUnit) (*syntax.Node, error) {
	bin, err := p.lookPath()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, p.tool.Args...), src.Path)
	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s parser cancelled: %w", p.lang, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %s", ErrToolTimeout, p.timeout, p.tool.Command)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited with status %d: %s",
				ErrToolExit, p.tool.Command, exitErr.ExitCode(), excerpt(stderr.String()))
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrToolExit, p.tool.Command, err)
	}

	var tree syntax.Node
	if err := json.Unmarshal(stdout.Bytes(), &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := syntax.Validate(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &tree, nil
}

// excerpt trims s to its first lines, capped at maxStderr bytes.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no stderr output"
	}
	if len(s) > maxStderr {
		cut := maxStderr
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return strings.ReplaceAll(s, "\n", " | ")
}
