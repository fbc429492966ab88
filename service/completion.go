package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// End states of a completion payload.
const (
	EndOK    = "end"
	EndError = "error"
)

// CompletionPayload is the normalized result of one invocation.
type CompletionPayload struct {
	End             string         `json:"end"`
	MessageLog      string         `json:"messageLog,omitempty"`
	ErrOutput       string         `json:"err_output,omitempty"`
	CommandExecuted string         `json:"command_executed,omitempty"`
	DataOutput      []Row          `json:"data_output"`
	ExtraOutput     map[string]any `json:"extra_output"`
}

// Summary holds the statistics gathered while the rows were forwarded.
type Summary struct {
	FirstRow Row
	RowCount int
	// AllRows is only kept when there is no export target.
	AllRows []Row
}

// apply fills the data and extra outputs of p from s.
func (s Summary) apply(p *CompletionPayload) {
	p.DataOutput = s.AllRows
	if p.DataOutput == nil {
		p.DataOutput = []Row{}
	}
	p.ExtraOutput = map[string]any{
		"db_countrows": s.RowCount,
		"db_firstrow":  s.FirstRow,
	}
	for i, col := range s.FirstRow.Columns {
		p.ExtraOutput["db_firstrow_"+strings.ToLower(col)] = jsonValue(s.FirstRow.Values[i])
	}
}

// Reporter receives the completion payload of an invocation.
type Reporter interface {
	Report(ctx context.Context, p CompletionPayload)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, p CompletionPayload)

func (f ReporterFunc) Report(ctx context.Context, p CompletionPayload) { f(ctx, p) }

// Completion forwards at most one payload to its reporter.
type Completion struct {
	mu       sync.Mutex
	ended    bool
	reporter Reporter
}

func NewCompletion(r Reporter) *Completion {
	return &Completion{reporter: r}
}

// Signal reports p unless a payload was already reported. It returns whether
// p was forwarded.
func (c *Completion) Signal(ctx context.Context, p CompletionPayload) bool {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		slog.DebugContext(ctx, "Dropping completion after invocation ended", "end", p.End, "message", p.MessageLog)
		return false
	}
	c.ended = true
	c.mu.Unlock()

	c.reporter.Report(ctx, p)
	return true
}

// Ended reports whether a payload was already signaled.
func (c *Completion) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}
