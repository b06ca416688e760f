package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

// DefaultMaxAttempts bounds how often a merge reruns after the target head moved
const DefaultMaxAttempts = 3

// MergeRequest describes a merge of Source into Target
type MergeRequest struct {
	Source      string // Branch or version merged from
	Target      string // Branch receiving the merge
	Author      string
	Message     string               // Defaults to "Merge branch '<source>' into <target>"
	Strategy    models.MergeStrategy // Defaults to MERGE
	AutoResolve bool
	DryRun      bool
}

// Orchestrator runs merges against a store. It holds no per-merge state and
// is safe for concurrent use.
type Orchestrator struct {
	store       graphstore.Store
	cache       *ResultCache
	logger      *slog.Logger
	maxAttempts int
	workers     int
	observer    func(models.MergeState)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCache memoizes results per version pair
func WithCache(c *ResultCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithLogger sets the logger for state transitions and commit outcomes
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMaxAttempts bounds pipeline reruns when the target head moves
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithWorkers bounds the concurrency of classification and resolution
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithObserver registers a callback invoked on every state transition
func WithObserver(fn func(models.MergeState)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// NewOrchestrator creates an Orchestrator over the given store.
func NewOrchestrator(st graphstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		logger:      slog.New(slog.DiscardHandler),
		maxAttempts: DefaultMaxAttempts,
		workers:     4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Merge merges req.Source into req.Target. The result is never nil; when its
// status is ERROR the returned error is the result's *models.MergeError.
func (o *Orchestrator) Merge(ctx context.Context, req MergeRequest) (*models.MergeResult, error) {
	strategy, err := models.ParseMergeStrategy(string(req.Strategy))
	if err == nil && (req.Source == "" || req.Target == "") {
		err = fmt.Errorf("%w: source and target are required", errInvalidRequest)
	}
	if err == nil && req.Source == req.Target {
		err = fmt.Errorf("%w: cannot merge %s into itself", errInvalidRequest, req.Source)
	}
	if err != nil {
		if !errors.Is(err, errInvalidRequest) {
			err = fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
		res := failedResult(req.Strategy, toMergeError(err))
		return res, res.Error
	}
	req.Strategy = strategy
	if req.Message == "" {
		req.Message = fmt.Sprintf("Merge branch '%s' into %s", req.Source, req.Target)
	}

	var res *models.MergeResult
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		res = o.attempt(ctx, req)
		if res.Error == nil || res.Error.Kind != models.ErrorHeadMoved {
			break
		}
		if attempt < o.maxAttempts {
			o.logger.Warn("target head moved during merge, retrying",
				"source", req.Source, "target", req.Target, "attempt", attempt)
		}
	}

	if res.Error != nil {
		return res, res.Error
	}
	return res, nil
}

// attempt resolves both heads and runs the pipeline against them, once per
// cache key
func (o *Orchestrator) attempt(ctx context.Context, req MergeRequest) *models.MergeResult {
	source, err := o.store.GetSchema(ctx, req.Source)
	if err != nil {
		return failedResult(req.Strategy, toMergeError(fmt.Errorf("resolve source %s: %w", req.Source, err)))
	}
	target, err := o.store.GetSchema(ctx, req.Target)
	if err != nil {
		return failedResult(req.Strategy, toMergeError(fmt.Errorf("resolve target %s: %w", req.Target, err)))
	}

	if o.cache == nil {
		return o.run(ctx, req, source, target)
	}
	key := CacheKey{
		SourceVersionID: source.VersionID,
		TargetVersionID: target.VersionID,
		Strategy:        req.Strategy,
		DryRun:          req.DryRun,
		AutoResolve:     req.AutoResolve,
	}
	for {
		res := o.cache.Do(ctx, key, func() *models.MergeResult {
			return o.run(ctx, req, source, target)
		})
		// A shared run cancelled by another caller is not this caller's failure
		if res.Error != nil && res.Error.Kind == models.ErrorCancelled && ctx.Err() == nil {
			o.logger.Debug("shared merge was cancelled, rerunning", "source", req.Source, "target", req.Target)
			continue
		}
		return res
	}
}

// pipeline carries the state of one run of the merge state machine
type pipeline struct {
	o     *Orchestrator
	req   MergeRequest
	res   *models.MergeResult
	start time.Time
}

func (p *pipeline) enter(s models.MergeState) {
	p.res.States = append(p.res.States, s)
	p.o.logger.Debug("merge state", "state", s, "source", p.req.Source, "target", p.req.Target)
	if p.o.observer != nil {
		p.o.observer(s)
	}
}

func (p *pipeline) finish(s models.MergeState, status models.MergeStatus) *models.MergeResult {
	p.res.Status = status
	p.res.DurationMs = time.Since(p.start).Milliseconds()
	p.res.ComputeStats()
	p.enter(s)
	return p.res
}

func (p *pipeline) fail(err error) *models.MergeResult {
	p.res.Error = toMergeError(err)
	p.o.logger.Debug("merge failed", "kind", p.res.Error.Kind, "error", err)
	return p.finish(models.StateDoneError, models.StatusError)
}

// run executes the merge state machine once
func (o *Orchestrator) run(ctx context.Context, req MergeRequest, source, target *models.SchemaVersion) *models.MergeResult {
	p := &pipeline{
		o:     o,
		req:   req,
		start: time.Now(),
		res: &models.MergeResult{
			Strategy:        req.Strategy,
			SourceVersionID: source.VersionID,
			TargetVersionID: target.VersionID,
		},
	}
	p.enter(models.StateInit)

	// DIFFING
	p.enter(models.StateDiffing)
	base, err := FindMergeBase(ctx, o.store, source, target)
	if err != nil {
		return p.fail(err)
	}
	p.res.AncestorID = base.VersionID
	deltas, err := Diff(base, source, target)
	if err != nil {
		return p.fail(err)
	}
	if !deltas.HasChanges() || !deltas.SourceContributes() {
		return p.finish(models.StateDoneNoChange, models.StatusNoChanges)
	}

	// CLASSIFYING
	p.enter(models.StateClassifying)
	conflicts, err := ClassifyAll(ctx, deltas.Deltas, o.workers)
	if err != nil {
		return p.fail(err)
	}

	// ANALYZING
	p.enter(models.StateAnalyzing)
	candidate := BuildCandidate(deltas, source, target)
	conflicts = appendNew(conflicts, analyze(candidate, source, target)...)
	remaining := conflicts
	resolved := candidate

	// AUTO_RESOLVING
	if req.AutoResolve {
		p.enter(models.StateAutoResolving)
		resolution, err := NewAutoResolver(o.workers, o.logger).Resolve(ctx, conflicts, candidate)
		if err != nil {
			return p.fail(err)
		}
		resolved = resolution.Schema
		remaining = resolution.Remaining
		p.res.AutoResolved = len(resolution.Applied) > 0

		// Resolutions change types, so conformance may no longer hold
		post := introduced(CheckSchema(resolved), CheckSchema(target))
		for _, c := range post {
			if !containsKey(conflicts, c) {
				conflicts = append(conflicts, c)
				remaining = append(remaining, c)
			}
		}
		SortConflicts(remaining)
	}

	// DECIDING
	p.enter(models.StateDeciding)
	SortConflicts(conflicts)
	p.res.Conflicts = conflicts
	p.res.Unresolved = remaining
	p.res.ResolvedSchema = resolved
	if len(remaining) > 0 {
		return p.finish(models.StateDoneConflict, models.StatusConflict)
	}
	if req.DryRun {
		return p.finish(models.StateDoneSuccess, models.StatusSuccess)
	}

	// COMMITTING
	p.enter(models.StateCommitting)
	var commitID string
	switch req.Strategy {
	case models.StrategySquash:
		commitID, err = o.commitSquash(ctx, req, source, target, resolved)
	default:
		commitID, err = o.store.CommitMerge(ctx, &graphstore.CommitRequest{
			Target:       req.Target,
			ExpectedHead: target.VersionID,
			Schema:       resolved,
			MergeParent:  source.VersionID,
			Author:       req.Author,
			Message:      req.Message,
		})
	}
	if err != nil {
		var ext *graphstore.ExternalConflict
		if errors.As(err, &ext) {
			reported := ConflictsFromPayload(ext.Payload)
			p.res.Conflicts = appendNew(p.res.Conflicts, reported...)
			p.res.Unresolved = appendNew(p.res.Unresolved, reported...)
			SortConflicts(p.res.Conflicts)
			SortConflicts(p.res.Unresolved)
			o.logger.Info("store rejected merge", "target", req.Target, "conflicts", len(reported))
			return p.finish(models.StateDoneConflict, models.StatusConflict)
		}
		return p.fail(err)
	}

	p.res.MergeCommitID = commitID
	o.logger.Info("merge committed",
		"source", req.Source, "target", req.Target, "strategy", req.Strategy, "commit", commitID)
	return p.finish(models.StateDoneSuccess, models.StatusSuccess)
}

// analyze reports the structural problems the merge introduces into target
func analyze(candidate, source, target *models.SchemaVersion) []models.Conflict {
	var out []models.Conflict
	out = append(out, introduced(Detect(candidate), Detect(target))...)
	out = append(out, introduced(CheckSchema(candidate), CheckSchema(target))...)
	out = append(out, danglingLinks(candidate, source)...)
	return out
}

// introduced filters out conflicts already present before the merge
func introduced(after, before []models.Conflict) []models.Conflict {
	cycles := cycleKeys(before)
	existing := make(map[string]bool, len(before))
	for _, c := range before {
		existing[conflictIdentity(c)] = true
	}
	var out []models.Conflict
	for _, c := range after {
		if cd, ok := c.(*models.CircularDependencyConflict); ok {
			if cycles[cycleKey(cd.Cycle, cd.LinkIDs)] {
				continue
			}
		} else if existing[conflictIdentity(c)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func conflictIdentity(c models.Conflict) string {
	a, b := c.Values()
	return models.ConflictKey(c) + "\x00" + a + "\x00" + b
}

// danglingLinks reports links of the merged schema whose endpoint was deleted
func danglingLinks(candidate, source *models.SchemaVersion) []models.Conflict {
	var out []models.Conflict
	for _, id := range candidate.LinkIDs() {
		link := candidate.Links[id]
		for _, end := range []string{link.Source, link.Target} {
			if _, ok := candidate.Entities[end]; ok {
				continue
			}
			side := models.SideTarget
			if _, ok := source.Entities[end]; !ok {
				side = models.SideSource
			}
			out = append(out, &models.DeleteModifyConflict{
				ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: end, FieldID: id},
				Scope:          models.ScopeEntity,
				DeletedOn:      side,
				Detail:         fmt.Sprintf("entity %s deleted on %s branch but link %s still references it", end, side, id),
			})
		}
	}
	return out
}

// appendNew appends conflicts whose key is not yet in list
func appendNew(list []models.Conflict, add ...models.Conflict) []models.Conflict {
	for _, c := range add {
		if !containsKey(list, c) {
			list = append(list, c)
		}
	}
	return list
}

func containsKey(list []models.Conflict, c models.Conflict) bool {
	key := models.ConflictKey(c)
	for _, existing := range list {
		if models.ConflictKey(existing) == key {
			return true
		}
	}
	return false
}

func failedResult(strategy models.MergeStrategy, merr *models.MergeError) *models.MergeResult {
	return &models.MergeResult{
		Status:   models.StatusError,
		Strategy: strategy,
		Error:    merr,
		States:   []models.MergeState{models.StateInit, models.StateDoneError},
	}
}

// ConflictsFromPayload turns a store conflict payload into conflicts. The
// conflict kind is inferred from each report's type; anything unrecognized
// is reported as a constraint conflict.
func ConflictsFromPayload(payload []byte) []models.Conflict {
	var reports []graphstore.ConflictReport
	if err := json.Unmarshal(payload, &reports); err != nil || len(reports) == 0 {
		return []models.Conflict{&models.ConstraintConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: "store"},
		}}
	}

	out := make([]models.Conflict, 0, len(reports))
	for _, r := range reports {
		h := models.ConflictHeader{Severity: models.SeverityError, EntityID: r.Entity, FieldID: r.Field}
		switch strings.ToLower(r.Type) {
		case "property_type", "type":
			out = append(out, &models.PropertyTypeConflict{ConflictHeader: h, TypeA: r.ValueA, TypeB: r.ValueB})
		case "cardinality":
			out = append(out, &models.CardinalityConflict{ConflictHeader: h, A: models.Cardinality(r.ValueA), B: models.Cardinality(r.ValueB)})
		case "delete_modify":
			out = append(out, &models.DeleteModifyConflict{ConflictHeader: h, Scope: models.ScopeEntity, DeletedOn: models.SideBoth, Detail: r.Message})
		case "circular_dependency", "cycle":
			out = append(out, &models.CircularDependencyConflict{
				ConflictHeader: h,
				Cycle:          []string{r.Entity},
				Strategies:     []string{models.StrategyBreakCycle, models.StrategyIntroduceInterface},
			})
		case "interface_mismatch":
			out = append(out, &models.InterfaceMismatchConflict{
				ConflictHeader: h,
				InterfaceID:    r.Field,
				Reason:         models.MismatchIncompatible,
				ActualType:     r.ValueA,
				ExpectedType:   r.ValueB,
			})
		default:
			out = append(out, &models.ConstraintConflict{ConflictHeader: h})
		}
	}
	SortConflicts(out)
	return out
}
