// Package approval suspends sensitive tool execution until a human
// explicitly approves or rejects it.
//
// A Gate creates and persists approval requests, notifies subscribed UIs
// through a broadcast bus, and resolves suspended tool calls through
// one-shot per-request events with at-most-once delivery. Persistence is
// best effort: a missing store never blocks gating.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/store"
)

// Bucket is the named store holding approval requests.
const Bucket = "approvals"

var (
	// ErrRejected propagates out of a gated tool call when the human
	// declined. The wrapped tool body never ran.
	ErrRejected = errors.New("tool call was not approved")

	// ErrDecisionTimeout fires when a configured decision timeout elapses
	// with no human response.
	ErrDecisionTimeout = errors.New("approval decision timed out")

	// ErrNotFound indicates the request id is unknown.
	ErrNotFound = errors.New("approval request not found")
)

// ExecuteFunc is the tool body a gate wraps.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Config tunes gate behavior.
type Config struct {
	// DecisionTimeout bounds the suspended wait inside a wrapped executor.
	// Zero preserves the indefinite wait.
	DecisionTimeout time.Duration

	// StaleAfter controls how old a persisted pending request may be
	// before Reconcile rejects it on startup.
	StaleAfter time.Duration
}

// Gate coordinates approval requests between tool executors and UIs.
type Gate struct {
	store  store.Store
	bus    *Bus
	logger *logging.Logger
	cfg    Config

	mu       sync.Mutex
	requests map[string]*Request
	waiters  map[string]chan bool

	now func() time.Time
}

// New creates a gate. st may be nil; gating then works without durability.
func New(st store.Store, bus *Bus, logger *logging.Logger, cfg Config) *Gate {
	if bus == nil {
		bus = NewBus()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		store:    st,
		bus:      bus,
		logger:   logger.WithComponent("approval"),
		cfg:      cfg,
		requests: make(map[string]*Request),
		waiters:  make(map[string]chan bool),
		now:      time.Now,
	}
}

// Bus exposes the broadcast surface for UI subscriptions.
func (g *Gate) Bus() *Bus {
	return g.bus
}

// CreateRequest builds a pending request, persists it best-effort, and
// notifies subscribers so a UI can render an inline prompt.
func (g *Gate) CreateRequest(ctx context.Context, toolCallID, toolName string, args map[string]any, reason string) *Request {
	req := g.newRequest(ctx, toolCallID, toolName, args, reason)
	g.bus.Publish(*req)
	return req
}

func (g *Gate) newRequest(ctx context.Context, toolCallID, toolName string, args map[string]any, reason string) *Request {
	req := &Request{
		ID:         uuid.NewString(),
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Args:       args,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  g.now(),
	}

	g.mu.Lock()
	g.requests[req.ID] = req
	g.mu.Unlock()

	g.persist(ctx, req)
	g.logger.Info("approval requested",
		zap.String("id", req.ID),
		zap.String("tool", toolName),
		zap.String("reason", reason))
	return req
}

// Respond decides a pending request. The one-shot event for the id fires and
// its waiter is removed, so a second call for the same id has no observable
// effect unless a new waiter was registered. The status transition is
// applied only once.
func (g *Gate) Respond(ctx context.Context, id string, approved bool) error {
	g.mu.Lock()
	req, ok := g.requests[id]
	if ok && !req.Terminal() {
		if approved {
			req.Status = StatusApproved
		} else {
			req.Status = StatusRejected
		}
	}
	waiter, hasWaiter := g.waiters[id]
	delete(g.waiters, id)
	g.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	g.persist(ctx, req)
	g.logger.Info("approval decided",
		zap.String("id", id),
		zap.Bool("approved", approved))

	if hasWaiter {
		// Buffered channel, waiter removed above: at-most-once, never blocks.
		waiter <- approved
	}
	return nil
}

// Get returns a request by id.
func (g *Gate) Get(id string) (*Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *req
	return &copied, nil
}

// Pending lists requests still awaiting a decision, oldest first.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Request
	for _, req := range g.requests {
		if req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	sortByCreation(out)
	return out
}

// WithApproval wraps a tool body so that invoking it first creates an
// approval request and suspends until the human decides. Rejection means
// the body never runs.
func (g *Gate) WithApproval(toolName, reason string, fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		req := g.newRequest(ctx, uuid.NewString(), toolName, args, reason)

		// The waiter must exist before the UI can possibly respond.
		waiter := g.registerWaiter(req.ID)
		g.bus.Publish(*req)

		var timeout <-chan time.Time
		if g.cfg.DecisionTimeout > 0 {
			timer := time.NewTimer(g.cfg.DecisionTimeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case approved := <-waiter:
			if !approved {
				return nil, fmt.Errorf("%w: %s (%s)", ErrRejected, toolName, reason)
			}
			return fn(ctx, args)

		case <-ctx.Done():
			g.removeWaiter(req.ID)
			return nil, ctx.Err()

		case <-timeout:
			g.removeWaiter(req.ID)
			return nil, fmt.Errorf("%w: %s", ErrDecisionTimeout, toolName)
		}
	}
}

// Reconcile restores persisted requests after a restart. Stale pendings are
// rejected; fresh pendings are re-broadcast so a reconnected UI can act on
// them. The in-memory wait from the previous process is gone either way.
func (g *Gate) Reconcile(ctx context.Context) {
	if g.store == nil {
		return
	}

	all, err := g.store.GetAll(ctx, Bucket)
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			g.logger.Warn("reconcile scan failed", zap.Error(err))
		}
		return
	}

	cutoff := g.now().Add(-g.cfg.StaleAfter)
	for _, kv := range all {
		var req Request
		if err := sonic.Unmarshal(kv.Value, &req); err != nil {
			g.logger.Warn("dropping undecodable approval record", zap.String("key", kv.Key))
			_ = g.store.Delete(ctx, Bucket, kv.Key)
			continue
		}

		g.mu.Lock()
		_, known := g.requests[req.ID]
		if !known {
			copied := req
			g.requests[req.ID] = &copied
		}
		g.mu.Unlock()
		if known || req.Status != StatusPending {
			continue
		}

		if g.cfg.StaleAfter > 0 && req.CreatedAt.Before(cutoff) {
			g.logger.Info("rejecting stale pending approval", zap.String("id", req.ID))
			_ = g.Respond(ctx, req.ID, false)
			continue
		}
		g.bus.Publish(req)
	}
}

func (g *Gate) registerWaiter(id string) chan bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan bool, 1)
	g.waiters[id] = ch
	return ch
}

func (g *Gate) removeWaiter(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, id)
}

// persist writes the request through to the store. Failures are logged and
// swallowed: a missing store must not block gating.
func (g *Gate) persist(ctx context.Context, req *Request) {
	if g.store == nil {
		return
	}

	raw, err := sonic.Marshal(req)
	if err != nil {
		g.logger.Warn("approval request not serializable", zap.String("id", req.ID), zap.Error(err))
		return
	}
	if err := g.store.Put(ctx, Bucket, store.KV{Key: req.ID, Value: raw}); err != nil {
		g.logger.Warn("approval persistence failed", zap.String("id", req.ID), zap.Error(err))
	}
}

func sortByCreation(reqs []Request) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
