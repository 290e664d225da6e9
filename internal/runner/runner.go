// Package runner annotates many files concurrently and reports per-file
// outcomes.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"markexpr/internal/config"
	"markexpr/internal/marker"
	"markexpr/internal/models"
	"markexpr/internal/parser"
	"markexpr/internal/utils"
)

// Options controls a Run.
type Options struct {
	// Workers bounds the number of files processed at once. Zero means
	// runtime.NumCPU().
	Workers int
	// Write rewrites annotated files in place.
	Write bool
	// OutDir receives a mirror of every processed file when set.
	OutDir string
	// Incremental skips files that are unchanged since the last run with the
	// same configuration. It only applies when Write or OutDir is set.
	Incremental bool
	Logger      *zap.Logger
}

// Runner applies one configuration to a set of files.
type Runner struct {
	cfg     config.Config
	opts    Options
	cfgHash string
	logger  *zap.Logger
}

// New validates cfg and returns a Runner.
func New(cfg config.Config, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to hash config: %w", err)
	}
	return &Runner{
		cfg:     cfg,
		opts:    opts,
		cfgHash: utils.HashContent(string(data)),
		logger:  logger,
	}, nil
}

// Config returns the configuration the runner applies.
func (r *Runner) Config() config.Config {
	return r.cfg
}

// Annotate parses src as the file at path and returns its records and the
// annotated source.
func (r *Runner) Annotate(ctx context.Context, path string, src []byte) ([]marker.Record, []byte, error) {
	mod, err := parser.Parse(ctx, path, src)
	if err != nil {
		return nil, nil, err
	}
	defer mod.Close()
	return mod.Annotate(r.cfg, marker.WithLogger(r.logger))
}

type target struct {
	path string
	root string
}

type result struct {
	report models.FileReport
	stamp  string
}

// Run processes every supported file under paths. Directories are walked,
// files are taken as given. A file that fails is reported and does not stop
// the run; only a missing path or cancellation of ctx does.
func (r *Runner) Run(ctx context.Context, paths []string) ([]models.FileReport, error) {
	targets, roots, err := r.collect(paths)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("collected source files", zap.Int("files", len(targets)))
	if len(targets) == 0 {
		return []models.FileReport{}, nil
	}

	incremental := r.opts.Incremental && r.writes()
	var projectID string
	var prev map[string]string
	if incremental {
		if projectID, err = utils.ComputeProjectID(roots...); err != nil {
			return nil, err
		}
		if prev, err = loadFileHashes(projectID); err != nil {
			return nil, fmt.Errorf("failed to load file hashes: %w", err)
		}
	}

	results := make([]result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.processFile(gctx, t, prev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := make([]models.FileReport, len(results))
	current := make(map[string]string, len(results))
	for i, res := range results {
		reports[i] = res.report
		if res.stamp != "" {
			current[normalizeFilePath(res.report.Path)] = res.stamp
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Path < reports[j].Path
	})

	if incremental {
		if err := saveFileHashes(projectID, current); err != nil {
			return nil, fmt.Errorf("failed to save file hashes: %w", err)
		}
	}
	return reports, nil
}

func (r *Runner) writes() bool {
	return r.opts.Write || r.opts.OutDir != ""
}

func (r *Runner) collect(paths []string) ([]target, []string, error) {
	var targets []target
	var roots []string
	seen := make(map[string]bool)

	add := func(path, root string) {
		key := normalizeFilePath(path)
		if seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, target{path: path, root: root})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, err
		}
		root, err := utils.NormalizeProjectRoot(p)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, root)

		if !info.IsDir() {
			add(p, filepath.Dir(p))
			continue
		}
		files, err := utils.GetAllSourceFiles(p, parser.IsSupportedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		for _, f := range files {
			add(f, p)
		}
	}
	return targets, roots, nil
}

func (r *Runner) processFile(ctx context.Context, t target, prev map[string]string) result {
	report := models.FileReport{
		Path:     t.path,
		Language: string(parser.DetectLanguage(t.path)),
	}
	fail := func(err error) result {
		report.Error = err.Error()
		r.logger.Warn("failed to process file", zap.String("path", t.path), zap.Error(err))
		return result{report: report}
	}

	src, err := os.ReadFile(t.path)
	if err != nil {
		return fail(err)
	}
	report.Hash = utils.HashContent(string(src))

	stamp := r.stamp(src)
	if prev != nil && prev[normalizeFilePath(t.path)] == stamp {
		report.Skipped = true
		r.logger.Debug("unchanged, skipping", zap.String("path", t.path))
		return result{report: report, stamp: stamp}
	}

	records, out, err := r.Annotate(ctx, t.path, src)
	if err != nil {
		return fail(err)
	}
	report.Records = records
	report.Annotated = len(records) > 0
	report.Output = out

	switch {
	case r.opts.OutDir != "":
		dest := mirrorPath(r.opts.OutDir, t.root, t.path)
		if err := writeFile(dest, out, 0o644); err != nil {
			return fail(err)
		}
		report.OutputPath = dest
	case r.opts.Write && report.Annotated:
		perm := os.FileMode(0o644)
		if info, err := os.Stat(t.path); err == nil {
			perm = info.Mode().Perm()
		}
		if err := writeFile(t.path, out, perm); err != nil {
			return fail(err)
		}
		report.OutputPath = t.path
		stamp = r.stamp(out)
	}

	if report.Annotated {
		r.logger.Info("annotated file",
			zap.String("path", t.path),
			zap.Int("records", len(records)),
		)
	}
	return result{report: report, stamp: stamp}
}

// stamp identifies a file content under the runner's configuration.
func (r *Runner) stamp(content []byte) string {
	return utils.HashContent(r.cfgHash + "\x00" + string(content))
}

// mirrorPath maps path below root onto outDir. Paths outside root keep only
// their base name.
func mirrorPath(outDir, root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return filepath.Join(outDir, rel)
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}
