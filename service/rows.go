package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sync"

	"google.golang.org/api/iterator"
)

// Row is a single result record. Columns and Values are parallel slices and
// keep the order reported by the warehouse.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a Row from alternating column/value pairs.
func NewRow(kv ...any) Row {
	r := Row{
		Columns: make([]string, 0, len(kv)/2),
		Values:  make([]any, 0, len(kv)/2),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		col, _ := kv[i].(string)
		r.Columns = append(r.Columns, col)
		r.Values = append(r.Values, kv[i+1])
	}
	return r
}

// Get returns the value stored under col.
func (r Row) Get(col string) (any, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.Columns)
}

// Map returns the row as an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// MarshalJSON encodes the row as a JSON object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(jsonValue(r.Values[i]))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue maps NaN and infinities, which JSON cannot represent, to null.
func jsonValue(v any) any {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil
		}
	}
	return v
}

// UnmarshalJSON decodes a JSON object into the row, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("row: expected a JSON object")
	}
	r.Columns, r.Values = nil, nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		r.Columns = append(r.Columns, key)
		r.Values = append(r.Values, v)
	}
	_, err = dec.Token()
	return err
}

// RowSource is a lazy, finite, non-restartable sequence of rows.
//
// Next returns iterator.Done once the sequence is exhausted. Any other error
// ends the sequence; rows returned before it are not retracted.
type RowSource interface {
	// Columns reports the column names known before the first row, if any.
	Columns() []string
	Next() (Row, error)
	// Materialized returns the full result when it was produced in one piece
	// instead of through a cursor.
	Materialized() ([]Row, bool)
	Close() error
}

type cursorSource struct {
	cols  []string
	next  func() (Row, error)
	close func() error
	done  bool
	once  sync.Once
}

// NewCursorSource adapts a pull function into a RowSource. next must return
// iterator.Done when the cursor is exhausted. closeFn may be nil.
func NewCursorSource(cols []string, next func() (Row, error), closeFn func() error) RowSource {
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &cursorSource{cols: cols, next: next, close: closeFn}
}

func (s *cursorSource) Columns() []string { return s.cols }

func (s *cursorSource) Next() (Row, error) {
	if s.done {
		return Row{}, iterator.Done
	}
	row, err := s.next()
	if err != nil {
		s.done = true
		if err != iterator.Done {
			err = withKind(ErrStream, err)
		}
		return Row{}, err
	}
	return row, nil
}

func (s *cursorSource) Materialized() ([]Row, bool) { return nil, false }

func (s *cursorSource) Close() error {
	var err error
	s.once.Do(func() { err = s.close() })
	return err
}

type sliceSource struct {
	cols []string
	rows []Row
	pos  int
}

// NewSliceSource exposes an already materialized result as a RowSource.
func NewSliceSource(cols []string, rows []Row) RowSource {
	return &sliceSource{cols: cols, rows: rows}
}

func (s *sliceSource) Columns() []string { return s.cols }

func (s *sliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return Row{}, iterator.Done
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceSource) Materialized() ([]Row, bool) { return s.rows, true }

func (s *sliceSource) Close() error { return nil }

// Tally wraps a RowSource and records the row count and the first row seen,
// before the row reaches the consumer.
type Tally struct {
	RowSource
	count int
	first Row
	seen  bool
}

// NewTally wraps src.
func NewTally(src RowSource) *Tally {
	return &Tally{RowSource: src}
}

func (t *Tally) Next() (Row, error) {
	row, err := t.RowSource.Next()
	if err != nil {
		return row, err
	}
	t.record(row)
	return row, nil
}

// Materialized hands out the whole result at once, so every row is counted
// here.
func (t *Tally) Materialized() ([]Row, bool) {
	rows, ok := t.RowSource.Materialized()
	if !ok {
		return nil, false
	}
	t.count, t.seen, t.first = 0, false, Row{}
	for _, r := range rows {
		t.record(r)
	}
	return rows, true
}

func (t *Tally) record(row Row) {
	if !t.seen {
		t.first = row
		t.seen = true
	}
	t.count++
}

// Count returns the number of rows handed out so far.
func (t *Tally) Count() int { return t.count }

// First returns the first row handed out and whether there was one.
func (t *Tally) First() (Row, bool) { return t.first, t.seen }

// Drain pulls every remaining row from src into a slice.
func Drain(src RowSource) ([]Row, error) {
	var rows []Row
	for {
		row, err := src.Next()
		if err == iterator.Done {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
