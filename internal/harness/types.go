package harness

import "time"

// CaseOK is the case of a step that did not fail.
const CaseOK = "ok"

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	At      time.Time      `json:"at"`
	Invoke  string         `json:"invoke"`
	Args    map[string]any `json:"args,omitempty"`
	Case    string         `json:"case"`              // CaseOK or an error kind
	Message string         `json:"message,omitempty"` // error message, when Case is not ok
	Summary string         `json:"summary,omitempty"` // one-line rendering of the result
	Result  any            `json:"result,omitempty"`  // JSON form of the return value
}

// Delivered is one notification observed during the run.
type Delivered struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	UserID      string `json:"user_id"`
	Tier        string `json:"tier,omitempty"`
	OldRank     int    `json:"old_rank,omitempty"`
	NewRank     int    `json:"new_rank,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every flow step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Notifications contains every delivered notification in order.
	Notifications []Delivered `json:"notifications"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Trace:         []TraceEvent{},
		Notifications: []Delivered{},
		Errors:        []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
