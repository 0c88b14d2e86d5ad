package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/access"
	"github.com/ppiankov/concordia/internal/intake"
	"github.com/ppiankov/concordia/internal/output"
	"github.com/ppiankov/concordia/internal/worker"
)

var (
	uploadManifest  string
	uploadYes       bool
	uploadBatchSize int
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload [paths...]",
	Short: "Match files to records and upload the matched ones",
	Long: `Match the given files against the target's records, show the result and,
after confirmation, upload every matched file one at a time in batches.

The run stops at the first failed upload. Files uploaded before the failure
stay uploaded; the rest are not attempted. Ctrl-C stops the run before the
next file.`,
	Example: `  concordia upload ./reports
  concordia upload -t blogs --yes --batch-size 10 ./assets`,
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := a.require(access.Upload); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchSize := a.cfg.Upload.BatchSize
	if cmd.Flags().Changed("batch-size") {
		batchSize = uploadBatchSize
	}
	runner := worker.NewBatchRunner(batchSize, a.logger)
	runner.OnProgress(func(p worker.Progress) {
		a.printer.Info("[%d/%d] %s -> %s", p.Done, p.Total, intake.Truncate(p.Item.File.OriginalName, intake.DisplayWidth), p.Item.RecordID)
	})

	s, err := a.session(runner)
	if err != nil {
		return err
	}
	files, err := a.candidates(args, uploadManifest)
	if err != nil {
		return err
	}
	if err := s.Select(files); err != nil {
		return err
	}

	p, err := s.Match(ctx)
	if err != nil {
		return err
	}
	if fetchErr := s.FetchError(); fetchErr != nil {
		a.printer.Warning("could not load records, treating the list as empty: %v", fetchErr)
	}
	a.showPartition(p)

	if len(p.Matched) == 0 {
		a.printer.Warning("nothing to upload")
		return nil
	}

	if !uploadYes {
		if !output.IsInteractive() {
			return errors.New("refusing to upload without confirmation: pass --yes when stdin is not a terminal")
		}
		ok, err := confirm(fmt.Sprintf("Upload %d file(s) to %s?", len(p.Matched), a.target.Section))
		if err != nil {
			return err
		}
		if !ok {
			a.printer.Info("aborted")
			return nil
		}
	}

	_, uploadErr := s.Upload(ctx)

	res, err := s.Result()
	if err != nil {
		return err
	}
	if uploadErr == nil {
		a.printer.Success("%s", res.Message)
	} else {
		a.logger.Debug("upload failed", "error", uploadErr)
		a.printer.Error("%s", res.Message)
		for _, e := range res.Errors {
			a.printer.Error("  %s", e)
		}
	}

	if err := s.Dismiss(); err != nil {
		return err
	}
	if uploadErr != nil {
		return fmt.Errorf("upload incomplete: %s", res.Outcome.Summary())
	}
	return nil
}

func confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func init() {
	uploadCmd.Flags().StringVar(&uploadManifest, "manifest", "", "file listing one path per line")
	uploadCmd.Flags().BoolVarP(&uploadYes, "yes", "y", false, "upload without asking for confirmation")
	uploadCmd.Flags().IntVar(&uploadBatchSize, "batch-size", 0, "files per batch (overrides upload.batch_size)")
	rootCmd.AddCommand(uploadCmd)
}
