package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/access"
	"github.com/ppiankov/concordia/internal/session"
	"github.com/ppiankov/concordia/internal/worker"
)

var (
	matchManifest string
	matchJSON     bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match [paths...]",
	Short: "Show which files pair with which records, without uploading",
	Long: `Collect files from the given paths (directories are scanned for the
configured extensions), fetch the target's records and print the matched
and unmatched lists. Nothing is uploaded.`,
	Example: `  concordia match ./reports
  concordia match -t blogs --manifest files.txt --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if err := a.require(access.View); err != nil {
			return err
		}

		s, err := a.session(worker.NewBatchRunner(a.cfg.Upload.BatchSize, a.logger))
		if err != nil {
			return err
		}
		files, err := a.candidates(args, matchManifest)
		if err != nil {
			return err
		}
		if err := s.Select(files); err != nil {
			return err
		}

		p, err := s.Match(cmd.Context())
		if err != nil {
			return err
		}
		if fetchErr := s.FetchError(); fetchErr != nil {
			a.printer.Warning("could not load records, treating the list as empty: %v", fetchErr)
		}

		if matchJSON {
			enc := json.NewEncoder(a.printer.Out())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}

		a.showPartition(p)
		a.printer.Info("%d matched, %d unmatched, %d records", len(p.Matched), len(p.Unmatched), s.RecordCount())
		return nil
	},
}

// session builds a reconciliation session against the target
func (a *app) session(runner *worker.BatchRunner) (*session.Session, error) {
	m, err := a.matcher()
	if err != nil {
		return nil, err
	}
	client := a.client()
	return session.New(client, m, runner, client, a.logger), nil
}

func init() {
	matchCmd.Flags().StringVar(&matchManifest, "manifest", "", "file listing one path per line")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "print the partition as JSON")
	rootCmd.AddCommand(matchCmd)
}
