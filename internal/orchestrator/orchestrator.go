// Package orchestrator drives one conversational turn against the model: it
// builds the prompt from the current document, lets the model pick an edit
// command, runs it, and asks the model to confirm the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/genai"

	"claridoc/internal/chat"
	"claridoc/internal/command"
	"claridoc/internal/logging"
	"claridoc/internal/usage"
)

const (
	replyNoResponse = "No response generated."
	replyUpdated    = "Document updated."
)

// ErrEmptyMessage is returned for a blank message with no attachment.
var ErrEmptyMessage = errors.New("message is empty")

// State is the position of the current turn in the orchestration state machine.
type State int32

const (
	StateIdle State = iota
	StateAwaitingModelResponse
	StatePlainReply
	StateToolCallDetected
	StateExecuting
	StateAwaitingFollowup
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingModelResponse:
		return "AwaitingModelResponse"
	case StatePlainReply:
		return "PlainReply"
	case StateToolCallDetected:
		return "ToolCallDetected"
	case StateExecuting:
		return "Executing"
	case StateAwaitingFollowup:
		return "AwaitingFollowup"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ModelService generates a response for an ordered conversation.
type ModelService interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Buffer exposes the live document content. It is read when the prompt is built
// and again when a command executes.
type Buffer interface {
	Content() string
}

// BufferFunc adapts a function to Buffer.
type BufferFunc func() string

// Content implements Buffer.
func (f BufferFunc) Content() string { return f() }

// Request is one user turn plus the conversation so far.
type Request struct {
	History    []chat.Turn
	Message    string
	Attachment *chat.Attachment
}

// Result is the outcome of a turn.
type Result struct {
	// Reply is the model turn to append to the conversation.
	Reply chat.Turn
	// Content is the new document content when Changed is set.
	Content string
	Changed bool
	// Tool is the command outcome when the model issued one.
	Tool *command.Result
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// Orchestrator runs turns one at a time.
type Orchestrator struct {
	model ModelService
	retry RetryPolicy

	turnMu sync.Mutex
	state  atomic.Int32
}

// New returns an orchestrator calling model.
func New(model ModelService, opts ...Option) *Orchestrator {
	o := &Orchestrator{model: model, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	if prev != s {
		logging.APIDebug("orchestrator: %s -> %s", prev, s)
	}
}

// Turn runs one user turn. Executor failures are reported in the reply, not as
// errors; errors are reserved for model failures and invalid requests.
func (o *Orchestrator) Turn(ctx context.Context, buf Buffer, req Request) (Result, error) {
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		return Result{}, ErrEmptyMessage
	}
	if err := req.Attachment.Validate(); err != nil {
		return Result{}, err
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	defer o.setState(StateIdle)

	timer := logging.StartTimer(logging.CategoryAPI, "orchestrator turn")
	defer timer.Stop()

	system := SystemPrompt(buf.Content())
	user := userParts(req.Message, req.Attachment)

	o.setState(StateAwaitingModelResponse)
	resp, err := o.generate(ctx, "model call", firstCallContents(system, req.History, user),
		&genai.GenerateContentConfig{Tools: Tools()})
	if err != nil {
		return Result{}, err
	}

	call := firstFunctionCall(resp)
	if call == nil {
		o.setState(StatePlainReply)
		return Result{Reply: chat.ModelTurn(replyText(resp, replyNoResponse), nil)}, nil
	}

	o.setState(StateToolCallDetected)
	record := &chat.ToolCall{Name: call.Name, Args: call.Args}
	logging.API("model requested %s", call.Name)

	o.setState(StateExecuting)
	res := command.Run(call.Name, call.Args, buf.Content())
	if !res.Success {
		return Result{
			Reply: chat.ModelTurn("Error: "+res.Error, record),
			Tool:  &res,
		}, nil
	}

	o.setState(StateAwaitingFollowup)
	text := replyUpdated
	followup, err := o.generate(ctx, "follow-up call", followupContents(system, user, call, res.Content), nil)
	switch {
	case err == nil:
		text = replyText(followup, replyUpdated)
	case ctx.Err() != nil:
		return Result{}, err
	default:
		// the edit already succeeded; keep it and fall back to the stock reply
		logging.APIWarn("follow-up call failed, keeping edit: %v", err)
	}

	o.setState(StatePlainReply)
	return Result{
		Reply:   chat.ModelTurn(text, record),
		Content: res.Content,
		Changed: true,
		Tool:    &res,
	}, nil
}

func (o *Orchestrator) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	ctx = usage.WithOperation(ctx, op)
	err := o.retry.Do(ctx, op, func(ctx context.Context) error {
		r, err := o.model.GenerateContent(ctx, contents, cfg)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		logging.APIError("%s failed: %v", op, err)
		return nil, err
	}
	return resp, nil
}

func firstFunctionCall(resp *genai.GenerateContentResponse) *genai.FunctionCall {
	if resp == nil {
		return nil
	}
	for _, fc := range resp.FunctionCalls() {
		if fc != nil && fc.Name != "" {
			return fc
		}
	}
	return nil
}

func replyText(resp *genai.GenerateContentResponse, fallback string) string {
	if resp == nil {
		return fallback
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text
	}
	return fallback
}
