package sandbox

import (
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/protocol"
)

// Executor is the code running inside the isolated context. It owns the
// single output document, renders already-sanitized markup into it, runs
// extracted script bodies against a hardened VM, and reports measured
// height. It has no access to anything of the host's beyond the message
// link.
type Executor struct {
	cfg    Config
	logger *logging.Logger

	in       <-chan []byte
	out      chan<- []byte
	stop     chan struct{}
	stopOnce sync.Once

	doc *goquery.Document
}

// halt stops the executor loop. Safe to call more than once.
func (e *Executor) halt() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func newExecutor(cfg Config, logger *logging.Logger, in <-chan []byte, out chan<- []byte) *Executor {
	return &Executor{
		cfg:    cfg,
		logger: logger.WithComponent("executor"),
		in:     in,
		out:    out,
		stop:   make(chan struct{}),
		doc:    emptyDocument(),
	}
}

// Run processes the message link until stopped. Readiness is announced
// exactly once, before any command is handled.
func (e *Executor) Run() {
	defer close(e.out)

	e.send(protocol.SandboxReady{})

	for {
		select {
		case <-e.stop:
			return
		case frame, ok := <-e.in:
			if !ok {
				return
			}
			msg, err := protocol.Decode(frame)
			if err != nil {
				// Malformed frames die at the boundary.
				e.logger.Warn("dropping malformed frame", zap.Error(err))
				continue
			}
			e.handle(msg)
		}
	}
}

func (e *Executor) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.RenderContent:
		e.setContent(m.Content)
		e.send(protocol.RenderComplete{MessageID: m.MessageID, Height: measureHeight(e.doc)})

	case protocol.RenderInteractive:
		e.setContent(m.Content)
		e.runScripts(m.Scripts)
		// One frame plus the settle delay lets injected scripts finish
		// mutating the DOM before height is captured.
		e.sleep(frameInterval + e.cfg.SettleDelay)
		e.send(protocol.RenderComplete{MessageID: m.MessageID, Height: measureHeight(e.doc)})

	case protocol.ClearContent:
		e.doc = emptyDocument()

	case protocol.GetHeight:
		e.send(protocol.HeightResponse{MessageID: m.MessageID, Height: measureHeight(e.doc)})

	default:
		e.logger.Warn("unexpected message kind", zap.String("kind", string(msg.Kind())))
	}
}

func (e *Executor) setContent(markup string) {
	doc, err := parseDocument(markup)
	if err != nil {
		// Sanitized markup should always parse; render an empty region
		// rather than dying.
		e.logger.Error("failed to parse sanitized markup", zap.Error(err))
		doc = emptyDocument()
	}
	e.doc = doc
}

// runScripts executes each extracted script body in document order against
// a fresh hardened VM. A failing script is logged and never prevents
// subsequent scripts from running. Script text never gets near the markup;
// execution happens only here.
func (e *Executor) runScripts(scripts []string) {
	if len(scripts) == 0 {
		return
	}

	vm := e.newVM()
	for i, body := range scripts {
		e.runScript(vm, i, body)
	}
}

func (e *Executor) runScript(vm *goja.Runtime, index int, body string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("script panicked", zap.Int("script", index), zap.Any("panic", r))
		}
	}()

	timer := time.AfterFunc(e.cfg.ScriptTimeout, func() {
		vm.Interrupt("script timeout exceeded")
	})
	defer timer.Stop()
	defer vm.ClearInterrupt()

	if _, err := vm.RunString(body); err != nil {
		e.logger.Warn("script failed", zap.Int("script", index), zap.Error(err))
	}
}

// newVM builds a hardened goja runtime bound to the current output
// document. Node-ish globals are removed and timers are no-ops.
func (e *Executor) newVM() *goja.Runtime {
	vm := goja.New()

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })

	e.setupConsole(vm)
	e.setupDocument(vm)

	return vm
}

func (e *Executor) setupConsole(vm *goja.Runtime) {
	console := vm.NewObject()
	makeLog := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			e.logger.Debug("sandbox console",
				zap.String("level", level),
				zap.String("message", strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	console.Set("log", makeLog("log"))
	console.Set("info", makeLog("info"))
	console.Set("warn", makeLog("warn"))
	console.Set("error", makeLog("error"))
	vm.Set("console", console)
}

func (e *Executor) setupDocument(vm *goja.Runtime) {
	document := vm.NewObject()

	document.Set("getElementById", func(id string) goja.Value {
		return e.firstMatch(vm, "#"+id)
	})
	document.Set("querySelector", func(selector string) goja.Value {
		return e.firstMatch(vm, selector)
	})
	document.Set("querySelectorAll", func(selector string) goja.Value {
		sel := e.doc.Find(selector)
		out := make([]goja.Value, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			out = append(out, e.elementProxy(vm, s))
		})
		return vm.ToValue(out)
	})

	vm.Set("document", document)
}

func (e *Executor) firstMatch(vm *goja.Runtime, selector string) goja.Value {
	sel := e.doc.Find(selector)
	if sel.Length() == 0 {
		return goja.Null()
	}
	return e.elementProxy(vm, sel.First())
}

// elementProxy exposes a selection to sandboxed scripts: text and markup
// accessors plus attribute manipulation. Event listeners are accepted and
// ignored; no events ever fire in the isolated context.
func (e *Executor) elementProxy(vm *goja.Runtime, sel *goquery.Selection) goja.Value {
	obj := vm.NewObject()

	obj.DefineAccessorProperty("textContent",
		vm.ToValue(func() string { return sel.Text() }),
		vm.ToValue(func(v string) { sel.SetText(v) }),
		goja.FLAG_TRUE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("innerHTML",
		vm.ToValue(func() string {
			h, err := sel.Html()
			if err != nil {
				return ""
			}
			return h
		}),
		vm.ToValue(func(v string) { sel.SetHtml(v) }),
		goja.FLAG_TRUE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("className",
		vm.ToValue(func() string { return sel.AttrOr("class", "") }),
		vm.ToValue(func(v string) { sel.SetAttr("class", v) }),
		goja.FLAG_TRUE, goja.FLAG_TRUE)

	obj.Set("id", sel.AttrOr("id", ""))
	obj.Set("tagName", strings.ToUpper(goquery.NodeName(sel)))
	obj.Set("getAttribute", func(name string) goja.Value {
		v, ok := sel.Attr(name)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	obj.Set("setAttribute", func(name, value string) { sel.SetAttr(name, value) })
	obj.Set("removeAttribute", func(name string) { sel.RemoveAttr(name) })
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })

	return obj
}

func (e *Executor) send(msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		e.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	select {
	case e.out <- frame:
	case <-e.stop:
	}
}

func (e *Executor) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-e.stop:
	}
}
