package agent

// Kind names a step event.
type Kind string

const (
	KindStatus      Kind = "status"
	KindToolInvoked Kind = "tool_invoked"
	KindToolResult  Kind = "tool_result"
	KindFinalAnswer Kind = "final_answer"
	KindError       Kind = "error"
)

// IsTerminal reports whether the kind ends a turn.
func (k Kind) IsTerminal() bool {
	return k == KindFinalAnswer || k == KindError
}

// StepEvent is one progress notification of a turn. Step runs 1..n without gaps,
// and a turn emits at most one terminal event, always last.
type StepEvent struct {
	Step       int                    `json:"step"`
	Kind       Kind                   `json:"kind"`
	ModelCall  int                    `json:"model_call"`
	MaxSteps   int                    `json:"max_steps"`
	Tool       string                 `json:"tool,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
	Content    string                 `json:"content,omitempty"`
	Category   string                 `json:"category,omitempty"`
	Err        error                  `json:"-"`
}

func (e StepEvent) IsTerminal() bool {
	return e.Kind.IsTerminal()
}
