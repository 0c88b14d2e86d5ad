// Package session drives one reconciliation pass through its states:
// Idle, FilesSelected, Matched, Uploading, then Done or Failed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/concordia/internal/cms"
	"github.com/ppiankov/concordia/internal/match"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/worker"
)

// State of a session
type State int

const (
	Idle State = iota
	FilesSelected
	Matched
	Uploading
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FilesSelected:
		return "files-selected"
	case Matched:
		return "matched"
	case Uploading:
		return "uploading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNothingToUpload   = errors.New("no matched files to upload")
	ErrNoFiles           = errors.New("no files selected")
)

// RecordSource supplies the authoritative record list
type RecordSource interface {
	Records(ctx context.Context) ([]model.CanonicalRecord, error)
}

// Session owns the candidate files and match results of one pass.
// Nothing in it is shared with other sessions.
type Session struct {
	mu sync.Mutex

	state    State
	source   RecordSource
	matcher  *match.Matcher
	runner   *worker.BatchRunner
	uploader worker.Uploader
	logger   *slog.Logger

	files     []model.CandidateFile
	records   int
	partition model.Partition
	outcome   model.BatchOutcome
	fetchErr  error
	uploadErr error
}

// New creates an idle session
func New(source RecordSource, matcher *match.Matcher, runner *worker.BatchRunner, uploader worker.Uploader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		state:    Idle,
		source:   source,
		matcher:  matcher,
		runner:   runner,
		uploader: uploader,
		logger:   logger,
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Files returns the current selection
func (s *Session) Files() []model.CandidateFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CandidateFile(nil), s.files...)
}

// Partition returns the last match result
func (s *Session) Partition() model.Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partition
}

// RecordCount is the size of the record snapshot used by the last match
func (s *Session) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// FetchError is the record fetch error of the last match, if any
func (s *Session) FetchError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

func (s *Session) transition(op string, allowed ...State) error {
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.state)
}

// Select replaces the selection and discards any previous match
func (s *Session) Select(files []model.CandidateFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition("select", Idle, FilesSelected, Matched); err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoFiles
	}

	s.files = append([]model.CandidateFile(nil), files...)
	s.partition = model.Partition{}
	s.state = FilesSelected
	return nil
}

// Remove drops one file from the selection. A matched session goes back to
// FilesSelected; removing the last file returns to Idle.
func (s *Session) Remove(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition("remove", FilesSelected, Matched); err != nil {
		return err
	}

	kept := s.files[:0:0]
	for _, f := range s.files {
		if f.UID != uid {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(s.files) {
		return fmt.Errorf("no selected file with uid %q", uid)
	}

	s.files = kept
	s.partition = model.Partition{}
	s.state = FilesSelected
	if len(kept) == 0 {
		s.state = Idle
	}
	return nil
}

// Match fetches records and classifies the selection. A failed or empty
// fetch is treated as zero records: every file ends up unmatched and the
// fetch error is kept for FetchError.
func (s *Session) Match(ctx context.Context) (model.Partition, error) {
	s.mu.Lock()
	if err := s.transition("match", FilesSelected, Matched); err != nil {
		s.mu.Unlock()
		return model.Partition{}, err
	}
	files := append([]model.CandidateFile(nil), s.files...)
	s.mu.Unlock()

	records, err := s.source.Records(ctx)
	if err != nil {
		s.logger.Warn("record fetch failed, matching against no records", "error", err)
		records = nil
	}
	partition := s.matcher.Match(records, files)

	for _, c := range partition.Collisions {
		s.logger.Warn("records share a title key", "key", c.Key, "records", c.RecordIDs, "kept", c.Kept)
	}
	s.logger.Info("matched files",
		"records", len(records),
		"matched", len(partition.Matched),
		"unmatched", len(partition.Unmatched))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
	s.records = len(records)
	s.partition = partition
	s.state = Matched
	return partition, nil
}

// Upload sends every matched file. On success the selection and match
// results are cleared; on failure they are kept alongside the error.
func (s *Session) Upload(ctx context.Context) (model.BatchOutcome, error) {
	s.mu.Lock()
	if err := s.transition("upload", Matched); err != nil {
		s.mu.Unlock()
		return model.BatchOutcome{}, err
	}
	if len(s.partition.Matched) == 0 {
		s.mu.Unlock()
		return model.BatchOutcome{}, ErrNothingToUpload
	}
	matched := append([]model.MatchResult(nil), s.partition.Matched...)
	s.state = Uploading
	s.mu.Unlock()

	outcome, err := s.runner.Run(ctx, matched, s.uploader)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
	s.uploadErr = err
	if err != nil {
		s.state = Failed
		return outcome, err
	}

	s.state = Done
	s.files = nil
	s.partition = model.Partition{}
	return outcome, nil
}

// Dismiss acknowledges a finished upload and returns to Idle
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition("dismiss", Done, Failed); err != nil {
		return err
	}
	s.state = Idle
	s.files = nil
	s.partition = model.Partition{}
	s.outcome = model.BatchOutcome{}
	s.uploadErr = nil
	s.fetchErr = nil
	s.records = 0
	return nil
}

// Result is what the user is shown after an upload
type Result struct {
	Message string
	Errors  []string
	Outcome model.BatchOutcome
}

// Result summarizes the finished upload. Structured endpoint errors are
// listed per item; anything else collapses into one generic message.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Done:
		return Result{Message: s.outcome.Summary(), Outcome: s.outcome}, nil
	case Failed:
		res := Result{
			Message: fmt.Sprintf("upload stopped: %s; files uploaded before the failure were kept", s.outcome.Summary()),
			Outcome: s.outcome,
		}
		var uerr *cms.UploadError
		switch {
		case errors.As(s.uploadErr, &uerr) && len(uerr.Errors) > 0:
			res.Errors = append(res.Errors, uerr.Errors...)
		case errors.Is(s.uploadErr, context.Canceled):
			res.Errors = []string{"upload cancelled"}
		default:
			res.Errors = []string{"upload failed, please try again"}
		}
		return res, nil
	default:
		return Result{}, fmt.Errorf("%w: result while %s", ErrInvalidTransition, s.state)
	}
}
