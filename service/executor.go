package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const executorName = "execute-snowflake"

// Executor runs export invocations: resolve the command, open a warehouse
// connection with an OAuth token, execute and deliver the rows to the
// selected target.
type Executor struct {
	tokens    TokenSource
	connector Connector
	metrics   *Metrics
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithMetrics records invocation metrics in m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func NewExecutor(tokens TokenSource, connector Connector, opts ...ExecutorOption) *Executor {
	e := &Executor{tokens: tokens, connector: connector}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one invocation. Its outcome is reported to r exactly once and
// returned.
func (e *Executor) Run(ctx context.Context, p Params, r Reporter) CompletionPayload {
	var reported CompletionPayload
	inv := &invocation{
		exec:   e,
		params: p,
		target: ResolveTarget(p),
		log:    slog.Default().With("invocation_id", uuid.NewString()),
		start:  time.Now(),
		completion: NewCompletion(ReporterFunc(func(ctx context.Context, payload CompletionPayload) {
			reported = payload
			if r != nil {
				r.Report(ctx, payload)
			}
		})),
	}
	inv.run(ctx)
	return reported
}

// invocation is the state of a single Run.
type invocation struct {
	exec       *Executor
	params     Params
	target     Target
	log        *slog.Logger
	start      time.Time
	completion *Completion

	command   string
	warehouse Warehouse
	source    RowSource
	release   sync.Once
	tally     *Tally
}

func (inv *invocation) run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			inv.fail(ctx, fmt.Errorf("panic: %v", rec))
		}
	}()

	query, err := LoadCommand(inv.params)
	if err != nil {
		inv.fail(ctx, err)
		return
	}
	inv.command = PrepareQuery(query, inv.params.Args)

	enc, err := inv.target.Encoder()
	if err != nil {
		inv.fail(ctx, err)
		return
	}

	wh, err := inv.connect(ctx)
	if err != nil {
		inv.fail(ctx, err)
		return
	}
	inv.warehouse = wh

	inv.log.InfoContext(ctx, "Executing query", "target", inv.target.Kind.String(), "path", inv.target.Path, "stream", inv.params.Streaming())
	src, err := wh.Execute(ctx, inv.command, inv.params.Streaming())
	if err != nil {
		inv.fail(ctx, withKind(ErrExecution, err))
		return
	}
	inv.source = src
	inv.tally = NewTally(src)

	var all []Row
	if enc == nil {
		all, err = Drain(inv.tally)
	} else {
		err = writeExport(ctx, inv.target.Path, enc, inv.tally)
	}
	if err != nil {
		inv.fail(ctx, err)
		return
	}

	inv.succeed(ctx, all)
}

func (inv *invocation) connect(ctx context.Context) (Warehouse, error) {
	p := inv.params
	tok, err := inv.exec.tokens.Token(ctx, TokenRequest{URL: p.URL, Username: p.User, Password: p.Password})
	if err != nil {
		return nil, withKind(ErrConnection, fmt.Errorf("Failed to get token or connect: %w", err))
	}
	wh, err := inv.exec.connector.Connect(ctx, p, tok)
	if err != nil {
		return nil, withKind(ErrConnection, fmt.Errorf("Failed to get token or connect: %w", err))
	}
	return wh, nil
}

// closeWarehouse releases the cursor and the connection, once, whichever way
// the invocation ends.
func (inv *invocation) closeWarehouse(ctx context.Context) {
	inv.release.Do(func() {
		if inv.source != nil {
			if err := inv.source.Close(); err != nil {
				inv.log.WarnContext(ctx, "Failed to close result cursor", "error", err)
			}
		}
		if inv.warehouse == nil {
			return
		}
		if err := inv.warehouse.Close(); err != nil {
			inv.log.WarnContext(ctx, "Failed to close warehouse connection", "error", err)
		}
	})
}

func (inv *invocation) summary() Summary {
	var s Summary
	if inv.tally != nil {
		s.RowCount = inv.tally.Count()
		s.FirstRow, _ = inv.tally.First()
	}
	return s
}

func (inv *invocation) succeed(ctx context.Context, all []Row) {
	s := inv.summary()
	s.AllRows = all

	payload := CompletionPayload{End: EndOK, CommandExecuted: inv.command}
	s.apply(&payload)

	inv.closeWarehouse(ctx)
	inv.log.InfoContext(ctx, "Invocation completed",
		"target", inv.target.Kind.String(),
		"path", inv.target.Path,
		"rows", s.RowCount,
		"elapsed", time.Since(inv.start),
	)
	if inv.completion.Signal(ctx, payload) {
		inv.exec.metrics.observe(inv.target.Kind, EndOK, s.RowCount, time.Since(inv.start))
	}
}

func (inv *invocation) fail(ctx context.Context, err error) {
	msg := fmt.Sprintf("%s: %v", executorName, err)
	if errors.Is(err, ErrMissingCommand) {
		msg = err.Error()
	}
	s := inv.summary()

	payload := CompletionPayload{
		End:             EndError,
		MessageLog:      msg,
		ErrOutput:       msg,
		CommandExecuted: inv.command,
	}
	s.apply(&payload)

	inv.closeWarehouse(ctx)
	inv.log.ErrorContext(ctx, "Invocation failed", "error", err, "rows", s.RowCount)
	if inv.completion.Signal(ctx, payload) {
		inv.exec.metrics.observe(inv.target.Kind, EndError, s.RowCount, time.Since(inv.start))
	}
}

// writeExport encodes rows into the file at path. The parent directory has to
// exist already. The file is closed on every path; rows written before a
// failure stay in it.
func writeExport(ctx context.Context, path string, enc Encoder, rows RowSource) (err error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return withKind(ErrDestinationPath, fmt.Errorf("export directory %s is not accessible: %w", dir, err))
	}
	f, err := os.Create(path)
	if err != nil {
		return withKind(ErrDestinationPath, fmt.Errorf("failed to create %s: %w", path, err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = withKind(ErrCommit, fmt.Errorf("failed to close %s: %w", path, cerr))
		}
	}()

	slog.DebugContext(ctx, "Writing export file", "path", path)
	return enc.Encode(ctx, rows, f)
}
