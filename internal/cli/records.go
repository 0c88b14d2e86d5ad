package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/access"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/output"
	"github.com/ppiankov/concordia/internal/worker"
)

var (
	recordsJSON bool
	recordsAll  bool
)

// recordsCmd represents the records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List the target's records and their match keys",
	Long: `Fetch the record list for the selected target and print each record with
the key its title normalizes to. Useful for checking why a file does not match.

With --all every configured target the role may view is fetched concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		names := []string{target}
		if recordsAll {
			names = a.cfg.TargetNames()
		}

		lists, err := a.fetchAll(cmd.Context(), names)
		if err != nil {
			return err
		}

		if recordsJSON {
			enc := json.NewEncoder(a.printer.Out())
			enc.SetIndent("", "  ")
			if !recordsAll {
				return enc.Encode(lists[target])
			}
			return enc.Encode(lists)
		}

		n := a.normalizer()
		for _, name := range names {
			records, ok := lists[name]
			if !ok {
				continue
			}
			if recordsAll {
				a.printer.Info("%s (%d)", name, len(records))
			}
			fmt.Fprintln(a.printer.Out(), output.RecordsTable(records, n.Title))
		}
		return nil
	},
}

// fetchAll loads the record lists of the named targets on a worker pool.
// Targets the role may not view are skipped with a warning.
func (a *app) fetchAll(ctx context.Context, names []string) (map[string][]model.CanonicalRecord, error) {
	var (
		allowed []string
		tasks   []worker.Task[[]model.CanonicalRecord]
	)
	for _, name := range names {
		t, err := a.cfg.Target(name)
		if err != nil {
			return nil, err
		}
		if err := a.caps.Require(access.Section(t.Section), access.View); err != nil {
			if len(names) == 1 {
				return nil, err
			}
			a.printer.Warning("skipping %s: %v", name, err)
			continue
		}
		client := a.clientFor(t)
		allowed = append(allowed, name)
		tasks = append(tasks, client.Records)
	}

	results := worker.NewPool[[]model.CanonicalRecord](len(tasks)).Run(ctx, tasks)

	lists := make(map[string][]model.CanonicalRecord, len(results))
	for i, res := range results {
		name := allowed[i]
		if res.Err != nil {
			if len(names) == 1 {
				return nil, fmt.Errorf("fetch records: %w", res.Err)
			}
			a.printer.Warning("could not load %s records: %v", name, res.Err)
			continue
		}
		lists[name] = res.Value
	}
	return lists, nil
}

func init() {
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "print records as JSON")
	recordsCmd.Flags().BoolVar(&recordsAll, "all", false, "list every configured target")
	rootCmd.AddCommand(recordsCmd)
}
