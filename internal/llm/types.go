package llm

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation sent to or returned by the
// completion service. Order within a conversation is chronological and
// must be preserved exactly.
type Message struct {
	Role       string
	Content    string
	ToolCallID string     // set on tool-result messages
	ToolCalls  []ToolCall // set on assistant messages requesting tools
}

// ToolCall is a request from the model to execute a named capability.
// Every ToolCall in an assistant message must be answered by exactly one
// tool-result message carrying the same ID before the next model call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSpec describes a callable capability to the model. Parameters is a
// JSON schema object; Description tells the model when to call the tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type Response struct {
	Message Message
}

// UsageObserver receives per-call token usage metadata. Implementations
// must not fail: OnError only records, never raises.
type UsageObserver interface {
	OnCompletion(promptTokens, completionTokens, totalTokens int)
	OnError(err error)
}

type ChatOptions struct {
	Tools    []ToolSpec
	Observer UsageObserver
}

type ChatOption func(*ChatOptions)

func WithTools(tools []ToolSpec) ChatOption {
	return func(o *ChatOptions) {
		o.Tools = tools
	}
}

func WithObserver(observer UsageObserver) ChatOption {
	return func(o *ChatOptions) {
		o.Observer = observer
	}
}

// CompletionError marks a completion-service transport or protocol
// failure, including rejected tool schemas.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return "completion service: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
