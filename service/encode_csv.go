package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"google.golang.org/api/iterator"
)

// CSVOptions control the CSV layout. They are parsed from the free-form
// csvOptions mapping of the invocation.
type CSVOptions struct {
	// Headers enables the header row. Defaults to true.
	Headers bool
	// HeaderNames overrides the column list taken from the first row.
	HeaderNames  []string
	Delimiter    rune
	RowDelimiter string
	// IncludeEndRowDelimiter terminates the last row with RowDelimiter.
	IncludeEndRowDelimiter bool
	WriteBOM               bool
}

// DefaultCSVOptions returns comma separated output with a header row and
// "\n" between rows.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Headers:      true,
		Delimiter:    ',',
		RowDelimiter: "\n",
	}
}

// ParseCSVOptions reads the recognised keys of raw on top of the defaults.
// Unknown keys are ignored.
func ParseCSVOptions(raw map[string]any) (CSVOptions, error) {
	opts := DefaultCSVOptions()
	for key, v := range raw {
		switch key {
		case "headers":
			switch h := v.(type) {
			case bool:
				opts.Headers = h
			case []string:
				opts.Headers, opts.HeaderNames = true, h
			case []any:
				opts.Headers = true
				opts.HeaderNames = make([]string, 0, len(h))
				for _, name := range h {
					opts.HeaderNames = append(opts.HeaderNames, fmt.Sprint(name))
				}
			default:
				return opts, fmt.Errorf("csvOptions.headers: unsupported value %v", v)
			}
		case "writeHeaders":
			b, err := optBool(key, v)
			if err != nil {
				return opts, err
			}
			opts.Headers = b
		case "delimiter":
			s := fmt.Sprint(v)
			r, size := utf8.DecodeRuneInString(s)
			if size == 0 || size != len(s) {
				return opts, fmt.Errorf("csvOptions.delimiter must be a single character, got %q", s)
			}
			opts.Delimiter = r
		case "rowDelimiter":
			s := fmt.Sprint(v)
			if s != "\n" && s != "\r\n" {
				return opts, fmt.Errorf("csvOptions.rowDelimiter must be \\n or \\r\\n, got %q", s)
			}
			opts.RowDelimiter = s
		case "quote":
			// encoding/csv always quotes with '"'
			if s := fmt.Sprint(v); s != `"` {
				return opts, fmt.Errorf("csvOptions.quote: only %q is supported, got %q", `"`, s)
			}
		case "includeEndRowDelimiter":
			b, err := optBool(key, v)
			if err != nil {
				return opts, err
			}
			opts.IncludeEndRowDelimiter = b
		case "writeBOM":
			b, err := optBool(key, v)
			if err != nil {
				return opts, err
			}
			opts.WriteBOM = b
		}
	}
	return opts, nil
}

func optBool(key string, v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("csvOptions.%s: %w", key, err)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("csvOptions.%s: unsupported value %v", key, v)
}

// CSVEncoder writes rows as delimited text. Each row is projected onto the
// header columns: missing fields become empty cells, extra fields are dropped.
type CSVEncoder struct {
	opts CSVOptions
}

func NewCSVEncoder(opts CSVOptions) *CSVEncoder {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.RowDelimiter == "" {
		opts.RowDelimiter = "\n"
	}
	return &CSVEncoder{opts: opts}
}

func (e *CSVEncoder) Encode(ctx context.Context, rows RowSource, w io.Writer) error {
	bw := bufio.NewWriter(w)
	rec := &recordWriter{opts: e.opts, out: bw}
	rec.buf.Grow(256)
	rec.cw = csv.NewWriter(&rec.buf)
	rec.cw.Comma = e.opts.Delimiter
	rec.cw.UseCRLF = e.opts.RowDelimiter == "\r\n"

	if e.opts.WriteBOM {
		if _, err := bw.WriteString("\ufeff"); err != nil {
			return withKind(ErrEncode, err)
		}
	}

	header := e.opts.HeaderNames
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
			_ = bw.Flush()
			return err
		}
		if n == 0 {
			if header == nil {
				header = row.Columns
			}
			if e.opts.Headers {
				if err := rec.write(header); err != nil {
					return err
				}
			}
		}
		if err := rec.write(project(row, header)); err != nil {
			return err
		}
		n++
	}

	if n == 0 && e.opts.Headers {
		if header == nil {
			header = rows.Columns()
		}
		if len(header) > 0 {
			if err := rec.write(header); err != nil {
				return err
			}
		}
	}
	if rec.lines > 0 && e.opts.IncludeEndRowDelimiter {
		if _, err := bw.WriteString(e.opts.RowDelimiter); err != nil {
			return withKind(ErrEncode, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return withKind(ErrCommit, fmt.Errorf("failed to flush csv: %w", err))
	}
	return nil
}

// recordWriter formats one record at a time with encoding/csv and joins the
// records with the row delimiter, leaving the last one unterminated.
type recordWriter struct {
	opts  CSVOptions
	out   *bufio.Writer
	buf   bytes.Buffer
	cw    *csv.Writer
	lines int
}

func (r *recordWriter) write(fields []string) error {
	r.buf.Reset()
	if err := r.cw.Write(fields); err != nil {
		return withKind(ErrEncode, err)
	}
	r.cw.Flush()
	if err := r.cw.Error(); err != nil {
		return withKind(ErrEncode, err)
	}
	line := bytes.TrimSuffix(r.buf.Bytes(), []byte(r.opts.RowDelimiter))
	if r.lines > 0 {
		if _, err := r.out.WriteString(r.opts.RowDelimiter); err != nil {
			return withKind(ErrEncode, err)
		}
	}
	if _, err := r.out.Write(line); err != nil {
		return withKind(ErrEncode, err)
	}
	r.lines++
	return nil
}

func project(row Row, header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		if i < len(row.Columns) && row.Columns[i] == col {
			out[i] = formatCell(row.Values[i])
			continue
		}
		if v, ok := row.Get(col); ok {
			out[i] = formatCell(v)
		}
	}
	return out
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
