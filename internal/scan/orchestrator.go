// Package scan runs batched, cancellable face-matching passes over photo sets and
// caches completed results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
)

// State is the lifecycle state of a scan.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateBatchRunning State = "batch_running"
	StateCompleted    State = "completed"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// ProfileSource loads the profile a scan matches against.
type ProfileSource interface {
	Get(ctx context.Context, ownerID string) (*facematch.FaceProfile, error)
}

// ResultStore is the cache consulted before and written after a scan.
type ResultStore interface {
	Lookup(ctx context.Context, ownerID string, sig facematch.Signature) (*facematch.CacheEntry, error)
	Store(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error
}

// Options tunes batching. Zero values select the defaults.
type Options struct {
	BatchSize int
	Workers   int
}

// Request describes one scan.
type Request struct {
	OwnerID string
	Photos  []facematch.PhotoRecord
	Force   bool // skip the cache lookup
}

// Result is the outcome of a completed scan.
type Result struct {
	OwnerID    string                  `json:"owner_id"`
	Signature  facematch.Signature     `json:"signature"`
	Matches    []facematch.MatchResult `json:"matches"`
	Errors     []*facematch.PhotoError `json:"-"`
	Processed  int                     `json:"processed"`
	Total      int                     `json:"total"`
	FromCache  bool                    `json:"from_cache"`
	ComputedAt time.Time               `json:"computed_at"`
}

// ErrorMessages returns the per-photo errors as strings.
func (r *Result) ErrorMessages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return msgs
}

// Orchestrator drives the comparison primitive over photo sets. At most one scan runs
// per owner at a time.
type Orchestrator struct {
	profiles   ProfileSource
	matcher    facematch.Matcher
	results    ResultStore
	classifier *facematch.Classifier
	batchSize  int
	workers    int
	now        func() time.Time

	mu     sync.Mutex
	states map[string]State
}

func NewOrchestrator(profiles ProfileSource, matcher facematch.Matcher, results ResultStore, classifier *facematch.Classifier, opts Options) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = constants.DefaultBatchSize
	}
	if opts.Workers < 1 {
		opts.Workers = constants.DefaultScanWorkers
	}
	if opts.Workers > constants.MaxScanWorkers {
		opts.Workers = constants.MaxScanWorkers
	}
	if classifier == nil {
		classifier = facematch.DefaultClassifier()
	}
	return &Orchestrator{
		profiles:   profiles,
		matcher:    matcher,
		results:    results,
		classifier: classifier,
		batchSize:  opts.BatchSize,
		workers:    opts.Workers,
		now:        time.Now,
		states:     make(map[string]State),
	}
}

// State returns the state of the owner's running scan, or StateIdle.
func (o *Orchestrator) State(ownerID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[ownerID]; ok {
		return s
	}
	return StateIdle
}

// Running reports whether a scan is in flight for the owner.
func (o *Orchestrator) Running(ownerID string) bool {
	return o.State(ownerID) != StateIdle
}

func (o *Orchestrator) acquire(ownerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.states[ownerID]; ok {
		return false
	}
	o.states[ownerID] = StateInitializing
	return true
}

func (o *Orchestrator) setState(ownerID string, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.states[ownerID]; ok {
		o.states[ownerID] = s
	}
}

func (o *Orchestrator) release(ownerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, ownerID)
}

// Scan matches req.Photos against the owner's profile.
//
// Precondition failures (empty photo set, missing or unusable profile, a scan already
// running for the owner) are returned before any event is reported. Otherwise exactly
// one terminal event is reported: completed, cancelled or failed. The cache is written
// only on completion. A cancelled scan returns facematch.ErrScanCancelled.
func (o *Orchestrator) Scan(ctx context.Context, req Request, reporter Reporter, token *CancellationToken) (*Result, error) {
	if err := ValidatePhotos(req.Photos); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	if !o.acquire(req.OwnerID) {
		return nil, facematch.ErrScanAlreadyRunning
	}
	defer o.release(req.OwnerID)

	profile, err := o.profiles.Get(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !profile.Usable() {
		return nil, facematch.ErrNoProfile
	}

	sig := facematch.ComputeSignature(req.Photos, profile.UpdatedAt)
	log := logging.FromContext(ctx).With(
		zap.String("owner_id", req.OwnerID),
		zap.String("signature", sig.Short()),
	)
	ctx = logging.WithLogger(ctx, log)

	r := &run{
		o:        o,
		ctx:      ctx,
		log:      log,
		req:      req,
		profile:  profile,
		sig:      sig,
		reporter: reporter,
		token:    token,
		started:  o.now(),
		batches:  (len(req.Photos) + o.batchSize - 1) / o.batchSize,
	}
	return r.execute()
}

// ValidatePhotos checks the photo set preconditions of Scan: at least one photo and
// unique photo ids.
func ValidatePhotos(photos []facematch.PhotoRecord) error {
	if len(photos) == 0 {
		return facematch.ErrEmptyPhotoSet
	}
	seen := make(map[string]bool, len(photos))
	for _, p := range photos {
		if seen[p.ID] {
			return fmt.Errorf("%w: %q", facematch.ErrDuplicatePhotoID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// run holds the state of a single scan invocation.
type run struct {
	o        *Orchestrator
	ctx      context.Context
	log      *zap.Logger
	req      Request
	profile  *facematch.FaceProfile
	sig      facematch.Signature
	reporter Reporter
	token    *CancellationToken
	started  time.Time
	batches  int

	// mu serializes reporter calls and guards the outcome fields below.
	mu        sync.Mutex
	processed int
	matches   []facematch.MatchResult
	errs      []*facematch.PhotoError
}

func (r *run) emit(e Event) {
	e.OwnerID = r.req.OwnerID
	e.Total = len(r.req.Photos)
	e.Batches = r.batches
	r.reporter.Report(e)
}

func (r *run) emitLocked(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Processed = r.processed
	r.emit(e)
}

func (r *run) stopRequested() bool {
	return r.token.Cancelled() || r.ctx.Err() != nil
}

func (r *run) execute() (*Result, error) {
	total := len(r.req.Photos)
	r.emitLocked(Event{Type: EventInitializing, BatchSize: r.o.batchSize})

	if !r.req.Force {
		if res := r.fromCache(); res != nil {
			return res, nil
		}
	}

	r.o.setState(r.req.OwnerID, StateBatchRunning)
	r.log.Info("scan started",
		zap.Int("photos", total),
		zap.Int("batches", r.batches),
		zap.Int("reference_photos", len(r.profile.Photos)),
	)

	for b := range r.batches {
		if r.stopRequested() {
			return r.cancel()
		}
		if b > 0 {
			if err := r.recheckProfile(); err != nil {
				return r.fail(err)
			}
		}

		start := b * r.o.batchSize
		end := min(start+r.o.batchSize, total)
		batch := r.req.Photos[start:end]

		r.emitLocked(Event{Type: EventBatchStarting, Batch: b + 1, BatchSize: len(batch)})
		r.log.Debug("batch starting", zap.Int("batch", b+1), zap.Int("size", len(batch)))

		if !r.runBatch(batch) {
			return r.cancel()
		}
	}

	// a cancellation during the last comparisons must not produce a cached result
	if r.stopRequested() {
		return r.cancel()
	}
	return r.complete()
}

// fromCache returns a cached result for the current signature, or nil on a miss.
// A failing cache is treated as a miss.
func (r *run) fromCache() *Result {
	if r.o.results == nil {
		return nil
	}
	entry, err := r.o.results.Lookup(r.ctx, r.req.OwnerID, r.sig)
	if err != nil {
		r.log.Warn("cache lookup failed, scanning", zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	res := &Result{
		OwnerID:    r.req.OwnerID,
		Signature:  r.sig,
		Matches:    entry.Results,
		Processed:  len(r.req.Photos),
		Total:      len(r.req.Photos),
		FromCache:  true,
		ComputedAt: entry.ComputedAt,
	}
	if res.Matches == nil {
		res.Matches = []facematch.MatchResult{}
	}
	r.o.setState(r.req.OwnerID, StateCompleted)
	r.log.Info("scan served from cache", zap.Int("matches", len(res.Matches)))
	r.emitLocked(Event{Type: EventCompleted, Summary: r.summary(res)})
	return res
}

// recheckProfile fails the scan when the profile was deleted or became unusable.
func (r *run) recheckProfile() error {
	p, err := r.o.profiles.Get(r.ctx, r.req.OwnerID)
	if err != nil {
		return fmt.Errorf("reload profile: %w", err)
	}
	if !p.Usable() {
		return facematch.ErrProfileVanished
	}
	return nil
}

// runBatch compares every photo of the batch. It returns false when cancellation stopped
// it before all photos were started.
func (r *run) runBatch(batch []facematch.PhotoRecord) bool {
	workers := min(r.o.workers, len(batch))
	if workers <= 1 {
		for _, photo := range batch {
			if r.stopRequested() {
				return false
			}
			r.compare(photo)
		}
		return true
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	complete := true

	for _, photo := range batch {
		if r.stopRequested() {
			complete = false
			break
		}

		select {
		case sem <- struct{}{}:
		case <-r.token.Done():
		case <-r.ctx.Done():
		}
		if r.stopRequested() {
			complete = false
			break
		}

		wg.Add(1)
		go func(p facematch.PhotoRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			r.compare(p)
		}(photo)
	}

	wg.Wait()
	return complete
}

// compare runs the comparison primitive for one photo and records its outcome.
func (r *run) compare(photo facematch.PhotoRecord) {
	cmp, err := r.o.matcher.Compare(r.ctx, r.profile.Photos, photo)
	if err != nil && r.ctx.Err() != nil {
		// aborted by the caller, the scan ends as cancelled
		r.log.Debug("comparison aborted", zap.String("photo_id", photo.ID), zap.Error(err))
		return
	}
	if err == nil && !facematch.ValidScore(cmp.Score) {
		err = fmt.Errorf("%w: %v", facematch.ErrScoreOutOfRange, cmp.Score)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed++
	r.emit(Event{Type: EventProcessing, PhotoID: photo.ID, Processed: r.processed})

	if err != nil {
		pe := &facematch.PhotoError{PhotoID: photo.ID, Err: err}
		r.errs = append(r.errs, pe)
		r.log.Debug("photo comparison failed", zap.String("photo_id", photo.ID), zap.Error(err))
		r.emit(Event{Type: EventError, PhotoID: photo.ID, Processed: r.processed, Error: err.Error()})
		return
	}

	d := r.o.classifier.Classify(cmp.Score)
	if !d.Accepted {
		return
	}
	m := facematch.MatchResult{
		PhotoID:    photo.ID,
		Confidence: cmp.Score,
		MatchType:  d.Band,
		Consensus:  cmp.Consensus,
	}
	r.matches = append(r.matches, m)
	r.emit(Event{Type: EventMatchFound, PhotoID: photo.ID, Processed: r.processed, Match: &m})
}

func (r *run) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := append([]facematch.MatchResult{}, r.matches...)
	facematch.SortResults(matches)
	return &Result{
		OwnerID:   r.req.OwnerID,
		Signature: r.sig,
		Matches:   matches,
		Errors:    append([]*facematch.PhotoError(nil), r.errs...),
		Processed: r.processed,
		Total:     len(r.req.Photos),
	}
}

func (r *run) summary(res *Result) *Summary {
	return &Summary{
		Matches:   len(res.Matches),
		Errors:    len(res.Errors),
		Processed: res.Processed,
		Total:     res.Total,
		FromCache: res.FromCache,
		Signature: string(res.Signature),
		Duration:  r.o.now().Sub(r.started),
	}
}

func (r *run) complete() (*Result, error) {
	res := r.result()
	res.ComputedAt = r.o.now().UTC()

	if r.o.results != nil {
		entry := &facematch.CacheEntry{
			Signature:  r.sig,
			Results:    res.Matches,
			ComputedAt: res.ComputedAt,
		}
		// The scan itself succeeded; a later scan simply recomputes.
		if err := r.o.results.Store(r.ctx, r.req.OwnerID, entry); err != nil {
			r.log.Warn("failed to store scan results in cache", zap.Error(err))
		}
	}

	r.o.setState(r.req.OwnerID, StateCompleted)
	r.log.Info("scan completed",
		zap.Int("matches", len(res.Matches)),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", r.o.now().Sub(r.started)),
	)
	r.emitLocked(Event{Type: EventCompleted, Summary: r.summary(res)})
	return res, nil
}

func (r *run) cancel() (*Result, error) {
	res := r.result()
	r.o.setState(r.req.OwnerID, StateCancelled)
	r.log.Info("scan cancelled", zap.Int("processed", res.Processed))
	r.emitLocked(Event{Type: EventCancelled, Summary: r.summary(res)})
	if err := r.ctx.Err(); err != nil && !r.token.Cancelled() {
		return nil, errors.Join(facematch.ErrScanCancelled, err)
	}
	return nil, facematch.ErrScanCancelled
}

func (r *run) fail(err error) (*Result, error) {
	res := r.result()
	r.o.setState(r.req.OwnerID, StateFailed)
	r.log.Error("scan failed", zap.Error(err), zap.Int("processed", res.Processed))
	r.emitLocked(Event{Type: EventFailed, Error: err.Error(), Summary: r.summary(res)})
	return nil, err
}
