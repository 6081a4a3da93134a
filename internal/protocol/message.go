package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind discriminates wire message types between the sandbox controller and
// the isolated executor.
type Kind string

const (
	KindRenderContent     Kind = "RENDER_CONTENT"
	KindRenderInteractive Kind = "RENDER_INTERACTIVE"
	KindClearContent      Kind = "CLEAR_CONTENT"
	KindGetHeight         Kind = "GET_HEIGHT"
	KindSandboxReady      Kind = "SANDBOX_READY"
	KindRenderComplete    Kind = "RENDER_COMPLETE"
	KindHeightResponse    Kind = "HEIGHT_RESPONSE"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

// Message is one wire frame. The concrete type fully determines which fields
// are meaningful; malformed frames are rejected at decode time rather than
// tolerated downstream.
type Message interface {
	Kind() Kind
}

// Correlated is implemented by request/response messages that carry a
// correlation id.
type Correlated interface {
	Message
	CorrelationID() int64
}

// RenderContent asks the executor to display sanitized static markup.
type RenderContent struct {
	MessageID int64
	Content   string
}

// RenderInteractive asks the executor to display sanitized markup and then
// run the extracted script bodies in order. Scripts never travel inline in
// Content.
type RenderInteractive struct {
	MessageID int64
	Content   string
	Scripts   []string
}

// ClearContent asks the executor to empty its output region.
type ClearContent struct{}

// GetHeight asks the executor to report current content height without
// altering content.
type GetHeight struct {
	MessageID int64
}

// SandboxReady is announced by the executor exactly once on startup.
type SandboxReady struct{}

// RenderComplete reports a finished render along with measured height.
type RenderComplete struct {
	MessageID int64
	Height    int
}

// HeightResponse answers a GetHeight query.
type HeightResponse struct {
	MessageID int64
	Height    int
}

func (RenderContent) Kind() Kind     { return KindRenderContent }
func (RenderInteractive) Kind() Kind { return KindRenderInteractive }
func (ClearContent) Kind() Kind      { return KindClearContent }
func (GetHeight) Kind() Kind         { return KindGetHeight }
func (SandboxReady) Kind() Kind      { return KindSandboxReady }
func (RenderComplete) Kind() Kind    { return KindRenderComplete }
func (HeightResponse) Kind() Kind    { return KindHeightResponse }

func (m RenderContent) CorrelationID() int64     { return m.MessageID }
func (m RenderInteractive) CorrelationID() int64 { return m.MessageID }
func (m GetHeight) CorrelationID() int64         { return m.MessageID }
func (m RenderComplete) CorrelationID() int64    { return m.MessageID }
func (m HeightResponse) CorrelationID() int64    { return m.MessageID }

// envelope is the JSON shape shared by all frames.
type envelope struct {
	Type      Kind     `json:"type"`
	Content   *string  `json:"content,omitempty"`
	Scripts   []string `json:"scripts,omitempty"`
	MessageID *int64   `json:"messageId,omitempty"`
	Height    *int     `json:"height,omitempty"`
}

// Encode serializes a message to its wire form.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind()}

	switch msg := m.(type) {
	case RenderContent:
		env.Content = &msg.Content
		env.MessageID = &msg.MessageID
	case RenderInteractive:
		env.Content = &msg.Content
		env.Scripts = msg.Scripts
		env.MessageID = &msg.MessageID
	case ClearContent, SandboxReady:
		// type only
	case GetHeight:
		env.MessageID = &msg.MessageID
	case RenderComplete:
		env.MessageID = &msg.MessageID
		env.Height = &msg.Height
	case HeightResponse:
		env.MessageID = &msg.MessageID
		env.Height = &msg.Height
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	return sonic.Marshal(env)
}

// Decode parses a wire frame, rejecting anything malformed at the boundary:
// unknown types, missing required fields, or fields that do not belong to
// the declared type.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case KindRenderContent:
		if env.Content == nil || env.MessageID == nil {
			return nil, fmt.Errorf("%w: %s requires content and messageId", ErrMalformed, env.Type)
		}
		if env.Scripts != nil {
			return nil, fmt.Errorf("%w: scripts not allowed on %s", ErrMalformed, env.Type)
		}
		return RenderContent{MessageID: *env.MessageID, Content: *env.Content}, nil

	case KindRenderInteractive:
		if env.Content == nil || env.MessageID == nil {
			return nil, fmt.Errorf("%w: %s requires content and messageId", ErrMalformed, env.Type)
		}
		return RenderInteractive{MessageID: *env.MessageID, Content: *env.Content, Scripts: env.Scripts}, nil

	case KindClearContent:
		return ClearContent{}, nil

	case KindGetHeight:
		if env.MessageID == nil {
			return nil, fmt.Errorf("%w: %s requires messageId", ErrMalformed, env.Type)
		}
		return GetHeight{MessageID: *env.MessageID}, nil

	case KindSandboxReady:
		return SandboxReady{}, nil

	case KindRenderComplete:
		if env.MessageID == nil || env.Height == nil {
			return nil, fmt.Errorf("%w: %s requires messageId and height", ErrMalformed, env.Type)
		}
		return RenderComplete{MessageID: *env.MessageID, Height: *env.Height}, nil

	case KindHeightResponse:
		if env.MessageID == nil || env.Height == nil {
			return nil, fmt.Errorf("%w: %s requires messageId and height", ErrMalformed, env.Type)
		}
		return HeightResponse{MessageID: *env.MessageID, Height: *env.Height}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
}
