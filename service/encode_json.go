package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/api/iterator"
)

// Encoder serializes a row sequence into w. Implementations stop writing as
// soon as the source or the destination fails.
type Encoder interface {
	Encode(ctx context.Context, rows RowSource, w io.Writer) error
}

// JSONEncoder writes the rows as a JSON array of objects.
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

// Encode streams each row as it is pulled. A materialized source is written
// in a single indented write instead.
func (e *JSONEncoder) Encode(ctx context.Context, rows RowSource, w io.Writer) error {
	if all, ok := rows.Materialized(); ok {
		if all == nil {
			all = []Row{}
		}
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return withKind(ErrEncode, fmt.Errorf("failed to marshal rows: %w", err))
		}
		if _, err := w.Write(data); err != nil {
			return withKind(ErrEncode, fmt.Errorf("failed to write json: %w", err))
		}
		return nil
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return withKind(ErrEncode, err)
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rows.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			// flush what was already encoded, the array stays unterminated
			_ = bw.Flush()
			return err
		}
		data, err := json.Marshal(row)
		if err != nil {
			_ = bw.Flush()
			return withKind(ErrEncode, fmt.Errorf("failed to marshal row %d: %w", n, err))
		}
		if n > 0 {
			if _, err := bw.WriteString(",\n"); err != nil {
				return withKind(ErrEncode, err)
			}
		} else if _, err := bw.WriteString("\n"); err != nil {
			return withKind(ErrEncode, err)
		}
		if _, err := bw.Write(data); err != nil {
			return withKind(ErrEncode, err)
		}
		n++
	}
	closing := "]"
	if n > 0 {
		closing = "\n]\n"
	}
	if _, err := bw.WriteString(closing); err != nil {
		return withKind(ErrEncode, err)
	}
	if err := bw.Flush(); err != nil {
		return withKind(ErrEncode, fmt.Errorf("failed to flush json: %w", err))
	}
	return nil
}
