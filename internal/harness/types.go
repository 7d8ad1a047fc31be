package harness

// Trace event types.
const (
	EventDispatch = "event" // a doc event fired by the document service
	EventStore    = "store" // a call from the reconciler to the store
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Type   string         `json:"type"`
	Op     string         `json:"op"`              // hook event or store method
	Store  string         `json:"store,omitempty"` // logical store for store calls
	Args   map[string]any `json:"args,omitempty"`  // filters or fields
	Fields []string       `json:"fields,omitempty"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every dispatch and store call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
