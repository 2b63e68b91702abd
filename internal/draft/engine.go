package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"advocase/internal/access"
	"advocase/internal/cases"
	"advocase/internal/utils"
	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
)

// State is the engine's per-session lifecycle. Transitions are monotonic:
// once past Creating the engine can never create again, and nothing ever
// moves it backwards.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateLocalOnly
	StateCreating
	StateBound
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateLocalOnly:
		return "local_only"
	case StateCreating:
		return "creating"
	case StateBound:
		return "bound"
	}
	return "unknown"
}

// SyncStatus is surfaced to the user for every push attempt, so a failed
// autosave is a dismissible notice rather than silence.
type SyncStatus string

const (
	StatusSaving   SyncStatus = "saving"
	StatusSaved    SyncStatus = "saved"
	StatusFailed   SyncStatus = "failed"
	StatusViewOnly SyncStatus = "view_only"
)

// CaseAPI is the slice of the case service the engine drives. Satisfied by
// *cases.Service.
type CaseAPI interface {
	Create(ctx context.Context, in cases.CreateInput) (*types.Case, error)
	Load(ctx context.Context, caseID, userID string) (*types.Case, access.Decision, error)
	Patch(ctx context.Context, caseID, userID string, patch types.CasePatch) (*types.Case, error)
}

const defaultDebounce = 800 * time.Millisecond

type Option func(*Engine)

func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithNotify installs a status callback; called outside the engine lock.
func WithNotify(fn func(SyncStatus, error)) Option {
	return func(e *Engine) { e.notify = fn }
}

// Engine reconciles one user's local draft with the server's canonical copy
// via pull-on-open and debounced last-write-wins pushes, provisioning a case
// at most once. One engine per user session; the user id is fixed at
// construction so state can never leak across accounts.
type Engine struct {
	api      CaseAPI
	store    *StateStore
	logger   *logrus.Logger
	userID   string
	debounce time.Duration
	notify   func(SyncStatus, error)

	// Idempotency token for auto-provisioning, fixed for the lifetime of
	// this engine instance.
	createToken string

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	caseID   string
	readOnly bool
	draft    types.Application
	progress *types.IntakeProgress
	timer    *time.Timer
	pushing  bool
	dirty    bool
	closed   bool
}

func NewEngine(api CaseAPI, store *StateStore, logger *logrus.Logger, userID string, opts ...Option) *Engine {
	e := &Engine{
		api:         api,
		store:       store,
		logger:      logger,
		userID:      userID,
		debounce:    defaultDebounce,
		createToken: utils.NanoID(),
		state:       StateUninitialized,
	}
	e.cond = sync.NewCond(&e.mu)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open initializes the engine. With a case id (resuming via a shared link)
// the server copy is always pulled and overwrites the local draft. Without
// one, a persisted active-case pointer is followed; failing that, a persisted
// local-only draft is resumed; failing that, the draft starts empty.
func (e *Engine) Open(ctx context.Context, caseID string) error {
	e.mu.Lock()
	if e.state != StateUninitialized {
		e.mu.Unlock()
		return fmt.Errorf("engine already opened (state %s)", e.state)
	}
	e.state = StateLoading
	e.mu.Unlock()

	if caseID != "" {
		return e.pull(ctx, caseID)
	}

	stored, err := e.store.Load(ctx, e.userID)
	if err != nil {
		return err
	}

	stale := false
	if stored.ActiveCaseID != "" {
		if err := e.pull(ctx, stored.ActiveCaseID); err != nil {
			// The pointer can go stale (case deleted, access revoked).
			// Fall back to a fresh local draft rather than failing open.
			if !errors.Is(err, types.ErrCaseNotFound) && !errors.Is(err, types.ErrForbidden) {
				return err
			}
			e.logger.WithFields(logrus.Fields{
				"user_id": e.userID,
				"case_id": stored.ActiveCaseID,
			}).Warn("active case pointer is stale, starting over")
			stale = true
			if stored.Progress != nil && stored.Progress.CaseID == stored.ActiveCaseID {
				stored.Progress = nil
			}
		} else {
			e.restoreProgress(stored)
			return nil
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if stored.Draft != nil {
		e.draft = stored.Draft.Clone()
	} else {
		e.draft = types.NewApplication()
	}
	e.progress = stored.Progress
	e.state = StateLocalOnly
	e.mu.Unlock()

	if stale {
		// Drop the dead pointer so the next open doesn't chase it again.
		e.persist(ctx)
	}
	return nil
}

// pull fetches the server copy; the server is authoritative on open.
func (e *Engine) pull(ctx context.Context, caseID string) error {
	c, decision, err := e.api.Load(ctx, caseID, e.userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		// Unmounted while the pull was in flight; discard the result.
		e.mu.Unlock()
		return nil
	}

	e.caseID = c.ID
	e.draft = c.Application.Clone()
	e.readOnly = !decision.AllowEdit()
	e.dirty = false
	e.state = StateBound
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

func (e *Engine) restoreProgress(stored *types.ClientState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stored.Progress != nil && stored.Progress.CaseID == e.caseID {
		e.progress = stored.Progress
	}
}

// Provision creates a case for a local-only draft, exactly once. The
// transition into Creating is one-way: a failed create leaves the engine in
// Creating, so this client instance can never create twice.
func (e *Engine) Provision(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateBound, StateCreating:
		e.mu.Unlock()
		return nil
	case StateLocalOnly:
	default:
		e.mu.Unlock()
		return fmt.Errorf("cannot provision from state %s", e.state)
	}
	e.state = StateCreating
	snapshot := e.draft.Clone()
	e.mu.Unlock()

	c, err := e.api.Create(ctx, cases.CreateInput{
		OwnerID:     e.userID,
		Application: snapshot,
		CreateToken: e.createToken,
	})
	if err != nil {
		e.logger.WithError(err).WithField("user_id", e.userID).Error("failed to provision case")
		e.notifyStatus(StatusFailed, err)
		return err
	}

	e.mu.Lock()
	e.caseID = c.ID
	e.state = StateBound
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

// Apply merges field edits into one section of the local draft and, once
// bound, schedules a debounced push. A view-only grantee gets ErrReadOnly
// immediately: changes that can never be pushed are refused, not buffered.
func (e *Engine) Apply(ctx context.Context, section string, fields types.Section) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine is closed")
	}
	if e.readOnly {
		e.mu.Unlock()
		e.notifyStatus(StatusViewOnly, types.ErrReadOnly)
		return types.ErrReadOnly
	}

	if e.draft == nil {
		e.draft = types.NewApplication()
	}
	merged := types.Section{}
	for k, v := range e.draft[section] {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	e.draft[section] = merged
	e.dirty = true
	bound := e.state == StateBound
	e.mu.Unlock()

	e.persist(ctx)

	if bound {
		e.schedulePush()
	}
	return nil
}

// SetProgress records the UI cursor; persisted only, never pushed.
func (e *Engine) SetProgress(ctx context.Context, step string, maxStepIndex int) {
	e.mu.Lock()
	e.progress = &types.IntakeProgress{
		CaseID:       e.caseID,
		Step:         step,
		MaxStepIndex: maxStepIndex,
		UpdatedAt:    time.Now(),
	}
	e.mu.Unlock()

	e.persist(ctx)
}

func (e *Engine) schedulePush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		if err := e.push(); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": e.userID,
				"case_id": e.CaseID(),
			}).Warn("draft push failed, will retry on next edit")
		}
	})
}

// push sends the current draft as one whole-application patch. Only one push
// is ever in flight; a push that fires while another is outstanding defers to
// it. A failed push re-marks the draft dirty so the next edit's debounce
// window retries it.
func (e *Engine) push() error {
	e.mu.Lock()
	if e.pushing || !e.dirty || e.state != StateBound {
		e.mu.Unlock()
		return nil
	}
	e.pushing = true
	e.dirty = false
	snapshot := e.draft.Clone()
	caseID := e.caseID
	e.mu.Unlock()

	e.notifyStatus(StatusSaving, nil)

	// An in-flight push is never cancelled, even on unmount: losing the
	// user's last edits is worse than a late write.
	_, err := e.api.Patch(context.Background(), caseID, e.userID, types.CasePatch{Application: snapshot})

	e.mu.Lock()
	e.pushing = false
	if err != nil {
		e.dirty = true
	}
	redirty := err == nil && e.dirty
	e.cond.Broadcast()
	e.mu.Unlock()

	if err != nil {
		e.notifyStatus(StatusFailed, err)
		return err
	}

	e.notifyStatus(StatusSaved, nil)
	if redirty {
		// Edits arrived while the push was in flight.
		e.schedulePush()
	}
	return nil
}

// Flush cancels the pending debounce, waits out any in-flight push, and
// pushes whatever is still dirty. For clients that want a hard save point.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	for e.pushing {
		e.cond.Wait()
	}
	e.mu.Unlock()

	return e.push()
}

// Close marks the engine unusable. Pending pulls are discarded when they
// resolve; an in-flight push is left to complete.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) CaseID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caseID
}

func (e *Engine) ReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readOnly
}

func (e *Engine) Draft() types.Application {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

func (e *Engine) Progress() *types.IntakeProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress == nil {
		return nil
	}
	copied := *e.progress
	return &copied
}

// persist snapshots the client state into the store. Failures are logged,
// not fatal: the in-memory draft is still the working copy.
func (e *Engine) persist(ctx context.Context) {
	e.mu.Lock()
	state := &types.ClientState{
		ActiveCaseID: e.caseID,
		Progress:     e.progress,
		Draft:        e.draft.Clone(),
	}
	e.mu.Unlock()

	if err := e.store.Save(ctx, e.userID, state); err != nil {
		e.logger.WithError(err).WithField("user_id", e.userID).Warn("failed to persist client state")
	}
}

func (e *Engine) notifyStatus(status SyncStatus, err error) {
	if e.notify != nil {
		e.notify(status, err)
	}
}
