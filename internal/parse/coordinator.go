package parse

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// DefaultMaxFileSize is the size above which files are skipped.
const DefaultMaxFileSize int64 = 1 << 20

// skipDirs are never descended into. Hidden directories are skipped as well.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"out":          true,
	"bin":          true,
	"__pycache__":  true,
	".dart_tool":   true,
	"venv":         true,
	".venv":        true,
}

// Coordinator enumerates a project and parses its files with the registered
// plugins.
type Coordinator struct {
	registry    *Registry
	maxSize     int64
	excludeDirs map[string]bool
	globs       []string
	gitignore   bool
	workers     int
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxFileSize sets the size limit in bytes. Non-positive values keep the
// default.
func WithMaxFileSize(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithExcludeDirs adds directory names to skip anywhere in the tree.
func WithExcludeDirs(dirs ...string) Option {
	return func(c *Coordinator) {
		for _, d := range dirs {
			c.excludeDirs[d] = true
		}
	}
}

// WithExcludeGlobs adds doublestar patterns matched against slash-separated
// project-relative paths.
func WithExcludeGlobs(globs ...string) Option {
	return func(c *Coordinator) { c.globs = append(c.globs, globs...) }
}

// WithGitignore toggles honoring the project root .gitignore.
func WithGitignore(on bool) Option {
	return func(c *Coordinator) { c.gitignore = on }
}

// WithWorkers sets the number of concurrent parse workers.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a Coordinator dispatching through reg.
func NewCoordinator(reg *Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:    reg,
		maxSize:     DefaultMaxFileSize,
		excludeDirs: make(map[string]bool),
		gitignore:   true,
		workers:     runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseProject parses every eligible file of the primary language under
// root. An unsupported language or unreadable root fails the report before
// any file is enumerated; per-file failures are recorded in Files.
func (c *Coordinator) ParseProject(ctx context.Context, root string, primary syntax.Language) *Report {
	start := time.Now()
	rep := &Report{Root: root, Language: primary, PerLanguage: map[syntax.Language]LanguageStats{}}
	fail := func(err error) *Report {
		rep.Error = err.Error()
		rep.Duration = time.Since(start)
		c.logger.Error("parse project failed", slog.String("root", root), slog.String("error", rep.Error))
		return rep
	}

	plugin, err := c.registry.Lookup(primary)
	if err != nil {
		return fail(err)
	}
	abs, err := checkRoot(root)
	if err != nil {
		return fail(err)
	}
	rep.Root = abs

	units, skipped, err := c.enumerate(abs, func(l syntax.Language) bool { return l == primary })
	if err != nil {
		return fail(err)
	}
	rep.EligibleFiles = len(units) + skipped
	rep.SkippedFiles = skipped

	c.logger.Info("parsing project",
		slog.String("root", abs),
		slog.String("language", string(primary)),
		slog.Int("files", len(units)),
		slog.Int("skipped", skipped),
	)

	rep.Files = make([]ParsedUnit, len(units))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, src := range units {
		g.Go(func() error {
			rep.Files[i] = c.parseOne(ctx, plugin, src)
			return nil
		})
	}
	_ = g.Wait()

	rep.summarize()
	rep.Success = true
	rep.Duration = time.Since(start)
	c.logger.Info("parse complete",
		slog.Int("total", rep.TotalFiles),
		slog.Int("successful", rep.SuccessfulFiles),
		slog.Int("failed", rep.FailedFiles),
		slog.Duration("duration", rep.Duration),
	)
	return rep
}

// DetectLanguage returns the registered language with the most eligible
// files under root. Ties go to the language that sorts first.
func (c *Coordinator) DetectLanguage(root string) (syntax.Language, error) {
	abs, err := checkRoot(root)
	if err != nil {
		return "", err
	}
	registered := make(map[syntax.Language]bool)
	for _, l := range c.registry.Languages() {
		registered[l] = true
	}
	units, _, err := c.enumerate(abs, func(l syntax.Language) bool { return registered[l] })
	if err != nil {
		return "", err
	}
	counts := make(map[syntax.Language]int)
	for _, u := range units {
		counts[u.Language]++
	}
	langs := make([]syntax.Language, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	if len(langs) == 0 {
		return "", fmt.Errorf("%w: no source files found under %s", ErrUnsupportedLanguage, abs)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs[0], nil
}

func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// enumerate walks root and returns the files whose language is accepted, in
// lexical order, plus the number of accepted files skipped for size.
func (c *Coordinator) enumerate(root string, accept func(syntax.Language) bool) ([]SourceUnit, int, error) {
	var gi *ignore.GitIgnore
	if c.gitignore {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = compiled
		}
	}

	var units []SourceUnit
	skipped := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Debug("skipping unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] || c.excludeDirs[name] ||
				c.globbed(rel) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		lang, ok := syntax.LanguageForPath(name)
		if !ok || !accept(lang) {
			return nil
		}
		if c.globbed(rel) || (gi != nil && gi.MatchesPath(rel)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > c.maxSize {
			skipped++
			c.logger.Debug("skipping oversized file", slog.String("file", rel), slog.Int64("size", info.Size()))
			return nil
		}
		units = append(units, SourceUnit{
			Path:      path,
			RelPath:   rel,
			Language:  lang,
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("enumerate %s: %w", root, err)
	}
	return units, skipped, nil
}

func (c *Coordinator) globbed(rel string) bool {
	for _, g := range c.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// parseOne reads src and dispatches it to plugin. Read and encoding failures
// become failed units.
func (c *Coordinator) parseOne(ctx context.Context, plugin Plugin, src SourceUnit) ParsedUnit {
	start := time.Now()
	pu := c.dispatch(ctx, plugin, src)
	pu.Source.Content = nil
	pu.Duration = time.Since(start)
	if !pu.Success {
		c.logger.Warn("parse failed",
			slog.String("file", src.RelPath),
			slog.String("diagnostic", pu.Diagnostic),
		)
	} else if pu.Heuristic {
		c.logger.Debug("heuristic parse", slog.String("file", src.RelPath))
	}
	return pu
}

func (c *Coordinator) dispatch(ctx context.Context, plugin Plugin, src SourceUnit) ParsedUnit {
	if err := ctx.Err(); err != nil {
		return failed(src, "parse cancelled: %v", err)
	}
	content, err := os.ReadFile(src.Path)
	if err != nil {
		return failed(src, "read file: %v", err)
	}
	src.LineCount = countLines(content)
	if !utf8.Valid(content) {
		return failed(src, "file is not valid UTF-8")
	}
	src.Content = content

	pu := safeParse(ctx, plugin, src)
	pu.Source.LineCount = src.LineCount
	pu.LineCount = src.LineCount
	pu.ContentHash = contentHash(content)
	return pu
}

// contentHash returns the hex xxh3 digest of content.
func contentHash(content []byte) string {
	h := xxh3.New()
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
