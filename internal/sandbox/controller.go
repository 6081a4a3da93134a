package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/protocol"
	"github.com/curiolabs/curio/internal/sanitize"
)

// Controller owns one isolated execution context and is the only way in or
// out of it. Content is sanitized before it crosses the link, responses are
// correlated back to waiting callers, and the context handle plus the
// message listener belong exclusively to the controller.
type Controller struct {
	cfg       Config
	sanitizer *sanitize.Sanitizer
	logger    *logging.Logger

	executor *Executor
	toExec   chan []byte
	fromExec chan []byte

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	mu        sync.Mutex
	nextID    int64
	pending   map[int64]chan protocol.Message
	destroyed bool
}

// NewController starts an executor and the host-side message listener.
// Callers must WaitForReady before rendering.
func NewController(cfg Config, s *sanitize.Sanitizer, logger *logging.Logger) *Controller {
	if s == nil {
		s = sanitize.New()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	toExec := make(chan []byte, channelBuffer)
	fromExec := make(chan []byte, channelBuffer)

	c := &Controller{
		cfg:       cfg,
		sanitizer: s,
		logger:    logger.WithComponent("sandbox"),
		toExec:    toExec,
		fromExec:  fromExec,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		pending:   make(map[int64]chan protocol.Message),
	}
	c.executor = newExecutor(cfg, logger, toExec, fromExec)

	go c.executor.Run()
	go c.listen()

	return c
}

// WaitForReady blocks until the executor has announced readiness. The
// controller buffers no calls; render methods must not be used before this
// resolves.
func (c *Controller) WaitForReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return ErrContextUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render sanitizes html with the strict profile, displays it, and returns
// the measured content height.
func (c *Controller) Render(ctx context.Context, html string) (int, error) {
	content := c.sanitizer.Sanitize(html, sanitize.Strict)

	resp, err := c.roundTrip(ctx, func(id int64) protocol.Message {
		return protocol.RenderContent{MessageID: id, Content: content}
	})
	if err != nil {
		return 0, err
	}
	return responseHeight(resp), nil
}

// RenderInteractive extracts script bodies out of html, sanitizes the
// remaining markup with the interactive profile, and ships markup and
// scripts separately. The executor owns execution order; scripts are never
// inlined back into the payload.
func (c *Controller) RenderInteractive(ctx context.Context, html string) (int, error) {
	stripped, scripts := sanitize.ExtractScripts(html)
	content := c.sanitizer.Sanitize(stripped, sanitize.Interactive)

	resp, err := c.roundTrip(ctx, func(id int64) protocol.Message {
		return protocol.RenderInteractive{MessageID: id, Content: content, Scripts: scripts}
	})
	if err != nil {
		return 0, err
	}
	return responseHeight(resp), nil
}

// Height reports current content height without altering content.
func (c *Controller) Height(ctx context.Context) (int, error) {
	resp, err := c.roundTrip(ctx, func(id int64) protocol.Message {
		return protocol.GetHeight{MessageID: id}
	})
	if err != nil {
		return 0, err
	}
	return responseHeight(resp), nil
}

// Clear empties the output region. Fire and forget; the visible height
// resets to its minimal value.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrContextUnavailable
	}
	c.mu.Unlock()

	frame, err := protocol.Encode(protocol.ClearContent{})
	if err != nil {
		return err
	}

	select {
	case c.toExec <- frame:
		return nil
	case <-c.done:
		return ErrContextUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy tears down the context: the listener detaches, the executor
// stops, and all pending correlated requests are dropped. In-flight callers
// are abandoned to their render timeout rather than rejected. Safe to call
// any number of times.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.pending = make(map[int64]chan protocol.Message)
	c.mu.Unlock()

	close(c.done)
	c.executor.halt()
}

// listen is the host-side message listener: it decodes frames from the
// executor and routes responses to their waiting callers. It exits when the
// executor closes its side of the link.
func (c *Controller) listen() {
	for frame := range c.fromExec {
		msg, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("dropping malformed frame from executor", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case protocol.SandboxReady:
			c.readyOnce.Do(func() { close(c.ready) })

		case protocol.RenderComplete, protocol.HeightResponse:
			c.resolve(m.(protocol.Correlated))

		default:
			c.logger.Warn("unexpected message from executor", zap.String("kind", string(msg.Kind())))
		}
	}
}

func (c *Controller) resolve(msg protocol.Correlated) {
	id := msg.CorrelationID()

	c.mu.Lock()
	waiter, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		// Late completion for a request that already timed out: the
		// winner was decided, the loser's effect is discarded.
		c.logger.Debug("dropping late response", zap.Int64("messageId", id))
		return
	}
	waiter <- msg
}

// roundTrip sends a correlated request and waits for the matching response,
// the render timeout, or context cancellation, whichever comes first.
func (c *Controller) roundTrip(ctx context.Context, build func(id int64) protocol.Message) (protocol.Message, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrContextUnavailable
	}
	c.nextID++
	id := c.nextID
	waiter := make(chan protocol.Message, 1)
	c.pending[id] = waiter
	c.mu.Unlock()

	frame, err := protocol.Encode(build(id))
	if err != nil {
		c.removePending(id)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RenderTimeout)
	defer timer.Stop()

	select {
	case c.toExec <- frame:
	case <-timer.C:
		c.removePending(id)
		return nil, ErrRenderTimeout
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}

	select {
	case resp := <-waiter:
		return resp, nil
	case <-timer.C:
		c.removePending(id)
		return nil, ErrRenderTimeout
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

func (c *Controller) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func responseHeight(msg protocol.Message) int {
	switch m := msg.(type) {
	case protocol.RenderComplete:
		return m.Height
	case protocol.HeightResponse:
		return m.Height
	}
	return MinHeight
}
