package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/access"
	"github.com/ppiankov/concordia/internal/cache"
	"github.com/ppiankov/concordia/internal/cms"
	"github.com/ppiankov/concordia/internal/intake"
	"github.com/ppiankov/concordia/internal/logging"
	"github.com/ppiankov/concordia/internal/match"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/normalize"
	"github.com/ppiankov/concordia/internal/output"
	"github.com/ppiankov/concordia/internal/worker"
)

// app bundles what every command needs once config is loaded
type app struct {
	cfg     *model.Config
	target  model.TargetConfig
	caps    access.Capabilities
	logger  *slog.Logger
	printer *output.Printer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	t, err := cfg.Target(target)
	if err != nil {
		return nil, err
	}

	r, err := access.ParseRole(cfg.Role)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		target:  t,
		caps:    access.Resolve(r),
		logger:  logger.With("target", target),
		printer: output.NewPrinter(quiet),
	}, nil
}

// require checks the configured role against the target's section
func (a *app) require(action access.Action) error {
	return a.caps.Require(access.Section(a.target.Section), action)
}

func (a *app) normalizer() *normalize.Normalizer {
	return normalize.New(normalize.Options{
		Delimiter:   a.cfg.Match.Delimiter,
		FoldAccents: a.cfg.Match.FoldAccents,
	})
}

func (a *app) matcher() (*match.Matcher, error) {
	policy, err := match.ParsePolicy(a.cfg.Match.CollisionPolicy)
	if err != nil {
		return nil, err
	}
	return match.NewMatcher(a.normalizer(), policy), nil
}

func (a *app) client() *cms.Client {
	return a.clientFor(a.target)
}

func (a *app) clientFor(t model.TargetConfig) *cms.Client {
	opts := cms.Options{
		Limiter: worker.NewLimiter(a.cfg.Upload.RequestsPerSecond, a.cfg.Upload.Burst),
		Logger:  a.logger,
	}
	if a.cfg.Cache.Enabled {
		store := cache.NewLayered(a.cfg.Cache.TTL, a.cfg.Cache.Dir)
		opts.Snapshots = cache.NewSnapshots(store, a.cfg.Cache.TTL)
	}
	return cms.NewClient(a.cfg.CMS, t, opts)
}

// candidates collects files from arguments and an optional manifest
func (a *app) candidates(args []string, manifest string) ([]model.CandidateFile, error) {
	paths := append([]string(nil), args...)
	if manifest != "" {
		listed, err := intake.ReadManifest(manifest)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no files given: pass paths or --manifest")
	}

	files, err := intake.Collect(paths, intake.Options{
		Extensions: a.cfg.Intake.Extensions,
		Recursive:  a.cfg.Intake.Recursive,
	})
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no matching files found")
	}
	return files, nil
}

// showPartition prints the matched, unmatched and collision tables
func (a *app) showPartition(p model.Partition) {
	w := a.printer.Out()
	if len(p.Matched) > 0 {
		a.printer.Info("Matched (%d)", len(p.Matched))
		fmt.Fprintln(w, output.MatchedTable(p.Matched))
	}
	if len(p.Unmatched) > 0 {
		a.printer.Info("Unmatched (%d)", len(p.Unmatched))
		fmt.Fprintln(w, output.UnmatchedTable(p.Unmatched))
	}
	if len(p.Collisions) > 0 {
		a.printer.Warning("%d title key(s) are shared by several records (policy: %s)", len(p.Collisions), a.cfg.Match.CollisionPolicy)
		fmt.Fprintln(w, output.CollisionTable(p.Collisions))
	}
}
