package service

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	payloads []CompletionPayload
}

func (r *recorder) Report(_ context.Context, p CompletionPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recorder) all() []CompletionPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CompletionPayload(nil), r.payloads...)
}

func TestCompletion_SignalsOnce(t *testing.T) {
	rec := &recorder{}
	c := NewCompletion(rec)

	require.True(t, c.Signal(context.Background(), CompletionPayload{End: EndError, MessageLog: "first"}))
	require.False(t, c.Signal(context.Background(), CompletionPayload{End: EndOK, MessageLog: "second"}))
	require.True(t, c.Ended())

	got := rec.all()
	require.Len(t, got, 1)
	require.Equal(t, "first", got[0].MessageLog)
}

func TestCompletion_ConcurrentSignals(t *testing.T) {
	rec := &recorder{}
	c := NewCompletion(rec)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Signal(context.Background(), CompletionPayload{End: EndOK})
		}()
	}
	wg.Wait()
	require.Len(t, rec.all(), 1)
}

func TestSummary_Apply(t *testing.T) {
	var p CompletionPayload
	Summary{FirstRow: NewRow("Id", 7, "NAME", "x"), RowCount: 3}.apply(&p)

	require.Equal(t, []Row{}, p.DataOutput)
	require.Equal(t, 3, p.ExtraOutput["db_countrows"])
	require.Equal(t, 7, p.ExtraOutput["db_firstrow_id"])
	require.Equal(t, "x", p.ExtraOutput["db_firstrow_name"])
	require.Equal(t, NewRow("Id", 7, "NAME", "x"), p.ExtraOutput["db_firstrow"])
}

func TestSummary_ApplyNonFiniteFirstRow(t *testing.T) {
	var p CompletionPayload
	Summary{FirstRow: NewRow("RATIO", math.NaN()), RowCount: 1}.apply(&p)

	require.Nil(t, p.ExtraOutput["db_firstrow_ratio"])
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(data), `"db_firstrow":{"RATIO":null}`)
}
