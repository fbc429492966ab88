package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

// streamOf returns a cursor backed source over rows, failing with failErr
// after failAfter rows when failErr is set.
func streamOf(cols []string, rows []Row, failAfter int, failErr error) RowSource {
	i := 0
	return NewCursorSource(cols, func() (Row, error) {
		if failErr != nil && i == failAfter {
			return Row{}, failErr
		}
		if i >= len(rows) {
			return Row{}, iterator.Done
		}
		r := rows[i]
		i++
		return r, nil
	}, nil)
}

func sampleRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = NewRow("ID", int64(i+1), "NAME", "row"+string(rune('a'+i)), "SCORE", float64(i)+0.5)
	}
	return rows
}

func TestJSONEncoder_RoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name string
		src  func([]Row) RowSource
	}{
		{name: "stream", src: func(r []Row) RowSource { return streamOf([]string{"ID", "NAME", "SCORE"}, r, 0, nil) }},
		{name: "materialized", src: func(r []Row) RowSource { return NewSliceSource([]string{"ID", "NAME", "SCORE"}, r) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rows := sampleRows(5)
			var buf bytes.Buffer
			require.NoError(t, NewJSONEncoder().Encode(context.Background(), tt.src(rows), &buf))

			var got []Row
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			require.Len(t, got, len(rows))
			for i := range rows {
				require.Equal(t, rows[i].Columns, got[i].Columns)
				require.EqualValues(t, rows[i].Values[0], got[i].Values[0])
				require.Equal(t, rows[i].Values[1], got[i].Values[1])
				require.Equal(t, rows[i].Values[2], got[i].Values[2])
			}
		})
	}
}

func TestJSONEncoder_MaterializedIsIndented(t *testing.T) {
	var buf bytes.Buffer
	src := NewSliceSource([]string{"A"}, []Row{NewRow("A", 1)})
	require.NoError(t, NewJSONEncoder().Encode(context.Background(), src, &buf))
	require.Equal(t, "[\n  {\n    \"A\": 1\n  }\n]", buf.String())
}

func TestJSONEncoder_Empty(t *testing.T) {
	for name, src := range map[string]RowSource{
		"stream":       streamOf(nil, nil, 0, nil),
		"materialized": NewSliceSource(nil, nil),
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewJSONEncoder().Encode(context.Background(), src, &buf))
			require.Equal(t, "[]", buf.String())
		})
	}
}

func TestJSONEncoder_StreamError(t *testing.T) {
	boom := errors.New("cursor expired")
	var buf bytes.Buffer
	err := NewJSONEncoder().Encode(context.Background(), streamOf(nil, sampleRows(3), 2, boom), &buf)
	require.ErrorIs(t, err, ErrStream)
	require.ErrorIs(t, err, boom)
	// the rows pulled before the failure were written
	require.Contains(t, buf.String(), `"ID":2`)
	require.NotContains(t, buf.String(), "]")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONEncoder_WriteError(t *testing.T) {
	err := NewJSONEncoder().Encode(context.Background(), streamOf(nil, sampleRows(1), 0, nil), failingWriter{})
	require.ErrorIs(t, err, ErrEncode)

	err = NewJSONEncoder().Encode(context.Background(), NewSliceSource(nil, sampleRows(1)), failingWriter{})
	require.ErrorIs(t, err, ErrEncode)
}
