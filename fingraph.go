// Package fingraph drives the document-to-graph batch: each document in a
// directory is read to text, turned into a structured record by an LLM and
// merged into the graph, one at a time with a fixed pause in between.
package fingraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/brunobiangulo/fingraph/extract"
	"github.com/brunobiangulo/fingraph/graph"
	"github.com/brunobiangulo/fingraph/parser"
	"github.com/brunobiangulo/fingraph/store"
)

// TextSource turns a document file into plain text.
type TextSource interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// Extractor turns text into a record or a failure.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Record, error)
}

// GraphUpserter writes a record into the graph.
type GraphUpserter interface {
	Upsert(ctx context.Context, rec *extract.Record, documentName string) (graph.Stats, error)
}

// SchemaEnsurer prepares the graph store before the first document.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context)
}

// Ledger records runs and document attempts. *store.Store implements it.
type Ledger interface {
	StartRun(ctx context.Context, r store.Run) error
	FinishRun(ctx context.Context, r store.Run) error
	RecordAttempt(ctx context.Context, a store.Attempt) (int64, error)
	LastSuccessfulHash(ctx context.Context, path string) (string, error)
}

// State is the orchestrator's position in the per-document cycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateExtracting
	StateUpserting
	StateSleeping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateExtracting:
		return "extracting"
	case StateUpserting:
		return "upserting"
	case StateSleeping:
		return "sleeping"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// stage names the failing step recorded for a document.
func (s State) stage() string {
	switch s {
	case StateReading:
		return StageRead
	case StateExtracting:
		return StageExtract
	case StateUpserting:
		return StageUpsert
	default:
		return s.String()
	}
}

// Document outcomes.
const (
	StatusSucceeded = store.StatusSucceeded
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	// StatusPlanned is a success in dry-run mode. It never satisfies
	// SkipUnchanged.
	StatusPlanned = "planned"
)

// Failure stages.
const (
	StageRead    = "read"
	StageExtract = "extract"
	StageUpsert  = "upsert"
)

// DocumentResult is the outcome of one document.
type DocumentResult struct {
	Path    string        `json:"path"`
	Name    string        `json:"name"`
	Hash    string        `json:"hash,omitempty"`
	Status  string        `json:"status"`
	Stage   string        `json:"stage,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Err     error         `json:"-"`
	Chars   int           `json:"chars"`
	Clients int           `json:"clients"`
	Stats   graph.Stats   `json:"stats"`
	Elapsed time.Duration `json:"elapsed"`
	// Extracted is true once the extraction service was called.
	Extracted bool   `json:"extracted"`
	Raw       string `json:"-"`
}

// Succeeded reports whether the document made it into the graph (or the
// dry-run plan).
func (r DocumentResult) Succeeded() bool {
	return r.Status == StatusSucceeded || r.Status == StatusPlanned
}

// Summary aggregates a run.
type Summary struct {
	RunID        string           `json:"run_id"`
	DocumentsDir string           `json:"documents_dir"`
	Total        int              `json:"total"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Skipped      int              `json:"skipped"`
	Canceled     bool             `json:"canceled"`
	Results      []DocumentResult `json:"results"`
	StartedAt    time.Time        `json:"started_at"`
	Elapsed      time.Duration    `json:"elapsed"`
}

func (s *Summary) add(r DocumentResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Status == StatusSkipped:
		s.Skipped++
	case r.Succeeded():
		s.Succeeded++
	default:
		s.Failed++
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLedger records the run in l.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithReporter sends progress to r.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithSchema runs s.EnsureSchema once before the first document.
func WithSchema(s SchemaEnsurer) Option {
	return func(p *Pipeline) { p.schema = s }
}

// withSleep replaces the inter-document pause.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// Pipeline is the sequential batch orchestrator.
type Pipeline struct {
	cfg       Config
	source    TextSource
	extractor Extractor
	upserter  GraphUpserter
	ledger    Ledger
	schema    SchemaEnsurer
	reporter  Reporter
	sleep     func(context.Context, time.Duration) error
	state     State
	runID     string
}

// NewPipeline wires the three stages together.
func NewPipeline(cfg Config, source TextSource, extractor Extractor, upserter GraphUpserter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		source:    source,
		extractor: extractor,
		upserter:  upserter,
		reporter:  NopReporter{},
		sleep:     sleepContext,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

func (p *Pipeline) setState(s State) {
	if p.state != s {
		slog.Debug("fingraph: state", "from", p.state, "to", s)
	}
	p.state = s
}

// Run processes every document in the configured directory. Per-document
// failures are counted, never returned: the error result is reserved for
// an unlistable directory or a run lock held by another batch. A lock that
// cannot be created at all is logged and the run proceeds unlocked.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	dir := p.cfg.DocumentsDir

	docs, err := ListDocuments(dir, p.cfg.NormalizedExtensions())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentsDir, err)
	}

	lock := flock.New(LockPath(p.cfg.LockDir, dir))
	locked, err := lock.TryLock()
	switch {
	case err != nil:
		slog.Warn("fingraph: run lock unavailable, continuing without it",
			"lock", lock.Path(), "error", err)
	case !locked:
		return nil, fmt.Errorf("%w: %s is held", ErrRunLocked, lock.Path())
	default:
		defer lock.Unlock()
	}

	p.runID = uuid.NewString()
	summary := &Summary{
		RunID:        p.runID,
		DocumentsDir: dir,
		Total:        len(docs),
		StartedAt:    start,
	}

	p.startLedgerRun(ctx, len(docs))
	if p.schema != nil {
		p.schema.EnsureSchema(ctx)
	}

	slog.Info("fingraph: run started",
		"run", p.runID, "dir", dir, "documents", len(docs),
		"model", p.cfg.ModelName(), "delay", p.cfg.Delay, "dry_run", p.cfg.DryRun)
	p.reporter.RunStarted(RunInfo{
		RunID:     p.runID,
		Dir:       dir,
		Documents: len(docs),
		Model:     p.cfg.ModelName(),
		Delay:     p.cfg.Delay,
		DryRun:    p.cfg.DryRun,
	})

	for i, path := range docs {
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}

		p.reporter.DocumentStarted(i+1, len(docs), path)
		res := p.ProcessDocument(ctx, path)
		summary.add(res)
		p.recordAttempt(ctx, res)
		p.reporter.DocumentFinished(i+1, len(docs), res)

		if i == len(docs)-1 || !res.Extracted || p.cfg.Delay <= 0 {
			continue
		}
		p.setState(StateSleeping)
		p.reporter.Sleeping(p.cfg.Delay)
		if err := p.sleep(ctx, p.cfg.Delay); err != nil {
			summary.Canceled = true
			break
		}
	}

	p.setState(StateDone)
	summary.Elapsed = time.Since(start)
	p.finishLedgerRun(ctx, summary)

	slog.Info("fingraph: run finished",
		"run", p.runID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"canceled", summary.Canceled,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	p.reporter.RunFinished(summary)
	return summary, nil
}

// ProcessDocument reads, extracts and upserts a single document. It never
// panics and never sleeps.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) (res DocumentResult) {
	start := time.Now()
	res = DocumentResult{Path: path, Name: DocumentName(path)}

	defer func() {
		if r := recover(); r != nil {
			stage := p.state.stage()
			slog.Error("fingraph: recovered panic", "file", path, "stage", stage, "panic", r)
			res.fail(stage, "panic", fmt.Errorf("%w: %v", ErrPanic, r))
		}
		res.Elapsed = time.Since(start)
		p.setState(StateIdle)
	}()

	// Reading
	p.setState(StateReading)
	hash, err := store.HashFile(path)
	if err != nil {
		slog.Warn("fingraph: reading document failed", "file", path, "error", err)
		res.fail(StageRead, readReason(err), err)
		return res
	}
	res.Hash = hash

	if p.skipUnchanged(ctx, path, hash) {
		slog.Info("fingraph: document unchanged since last successful run, skipping", "file", path)
		res.Status = StatusSkipped
		res.Reason = "unchanged"
		return res
	}

	text, err := p.source.ReadText(ctx, path)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyText
	}
	if err != nil {
		slog.Warn("fingraph: reading document failed", "file", path, "error", err)
		res.fail(StageRead, readReason(err), err)
		return res
	}
	res.Chars = len(text)

	// Extracting
	p.setState(StateExtracting)
	res.Extracted = true
	rec, err := p.extractor.Extract(ctx, text)
	if err != nil {
		slog.Warn("fingraph: extraction failed", "file", path, "reason", extract.Reason(err), "error", err)
		res.fail(StageExtract, extract.Reason(err), err)
		return res
	}
	res.Clients = len(rec.Clients)
	res.Raw = string(rec.Raw)
	if !rec.HasClients() {
		slog.Warn("fingraph: no clients extracted, nothing written", "file", path)
	}

	// Upserting
	p.setState(StateUpserting)
	stats, err := p.upserter.Upsert(ctx, rec, res.Name)
	res.Stats = stats
	if err != nil {
		slog.Warn("fingraph: graph upsert failed", "file", path, "error", err)
		reason := "write_error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "canceled"
		}
		res.fail(StageUpsert, reason, err)
		return res
	}

	res.Status = StatusSucceeded
	if p.cfg.DryRun {
		res.Status = StatusPlanned
	}
	slog.Info("fingraph: document processed",
		"file", path,
		"clients", res.Clients,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res
}

func (r *DocumentResult) fail(stage, reason string, err error) {
	r.Status = StatusFailed
	r.Stage = stage
	r.Reason = reason
	r.Err = err
}

func readReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyText):
		return "empty_text"
	case errors.Is(err, parser.ErrLegacyFormat):
		return "legacy_format"
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, os.ErrNotExist):
		return "not_found"
	default:
		return "read_error"
	}
}

func (p *Pipeline) skipUnchanged(ctx context.Context, path, hash string) bool {
	if !p.cfg.SkipUnchanged || p.ledger == nil {
		return false
	}
	last, err := p.ledger.LastSuccessfulHash(ctx, absPath(path))
	if err != nil {
		slog.Warn("fingraph: ledger lookup failed", "file", path, "error", err)
		return false
	}
	return last != "" && last == hash
}

// --- ledger ---

func (p *Pipeline) startLedgerRun(ctx context.Context, total int) {
	if p.ledger == nil {
		return
	}
	err := p.ledger.StartRun(ctx, store.Run{
		ID:           p.runID,
		DocumentsDir: absPath(p.cfg.DocumentsDir),
		Provider:     p.cfg.LLM.Provider,
		Model:        p.cfg.ModelName(),
		DryRun:       p.cfg.DryRun,
		Total:        total,
	})
	if err != nil {
		slog.Warn("fingraph: ledger start failed, run will not be recorded", "error", err)
		p.ledger = nil
	}
}

func (p *Pipeline) recordAttempt(ctx context.Context, res DocumentResult) {
	if p.ledger == nil {
		return
	}
	var errText string
	if res.Err != nil {
		errText = res.Err.Error()
	}
	_, err := p.ledger.RecordAttempt(context.WithoutCancel(ctx), store.Attempt{
		RunID:       p.runID,
		Path:        absPath(res.Path),
		Name:        res.Name,
		ContentHash: res.Hash,
		Status:      res.Status,
		Stage:       res.Stage,
		Reason:      res.Reason,
		Error:       errText,
		Model:       p.cfg.ModelName(),
		Clients:     res.Clients,
		Nodes:       res.Stats.Nodes,
		Edges:       res.Stats.Edges,
		Elapsed:     res.Elapsed,
		RawJSON:     res.Raw,
	})
	if err != nil {
		slog.Warn("fingraph: ledger write failed", "file", res.Path, "error", err)
	}
}

func (p *Pipeline) finishLedgerRun(ctx context.Context, s *Summary) {
	if p.ledger == nil {
		return
	}
	status := store.RunDone
	if s.Canceled {
		status = store.RunCanceled
	}
	err := p.ledger.FinishRun(context.WithoutCancel(ctx), store.Run{
		ID:        s.RunID,
		Status:    status,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
	})
	if err != nil {
		slog.Warn("fingraph: ledger finish failed", "run", s.RunID, "error", err)
	}
}

// --- helpers ---

// ListDocuments returns the files directly inside dir whose extension is in
// exts, sorted by name. Hidden files and Office owner files ("~$...") are
// ignored.
func ListDocuments(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	var docs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if want[ext] {
			docs = append(docs, filepath.Join(dir, name))
		}
	}
	sort.Strings(docs)
	return docs, nil
}

// DocumentName is the file name without directory or extension.
func DocumentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LockPath is the run lock for documents directory dir. It lives in lockDir
// (the system temp directory when empty), named after a hash of the
// directory's absolute path, so the documents directory itself is never
// written to.
func LockPath(lockDir, dir string) string {
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	sum := sha256.Sum256([]byte(absPath(dir)))
	return filepath.Join(lockDir, "fingraph-"+hex.EncodeToString(sum[:8])+".lock")
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
