package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/iterator"
)

const (
	defaultSheetName   = "Sheet"
	defaultAuthor      = "Runnerty"
	defaultColumnWidth = 20
)

// XLSXOptions configure the workbook produced by XLSXEncoder.
type XLSXOptions struct {
	SheetName string
	Author    string
}

// XLSXEncoder writes the rows into a single worksheet through excelize's
// stream writer, so only the spill buffer grows with the result size.
type XLSXEncoder struct {
	opts XLSXOptions
	now  func() time.Time
}

// Validate checks the sheet name against the workbook naming rules on a
// scratch workbook.
func (o XLSXOptions) Validate() error {
	if o.SheetName == "" {
		return nil
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", o.SheetName); err != nil {
		return fmt.Errorf("invalid sheet name %q: %w", o.SheetName, err)
	}
	return nil
}

func NewXLSXEncoder(opts XLSXOptions) *XLSXEncoder {
	if opts.SheetName == "" {
		opts.SheetName = defaultSheetName
	}
	if opts.Author == "" {
		opts.Author = defaultAuthor
	}
	return &XLSXEncoder{opts: opts, now: time.Now}
}

// Encode infers the header from the first row's columns. Rows after the
// first are projected onto that header. The workbook is only written to w
// once the source is exhausted.
func (e *XLSXEncoder) Encode(ctx context.Context, rows RowSource, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.opts.SheetName); err != nil {
		return withKind(ErrEncode, fmt.Errorf("invalid sheet name %q: %w", e.opts.SheetName, err))
	}
	stamp := e.now().UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:        e.opts.Author,
		LastModifiedBy: e.opts.Author,
		Created:        stamp,
		Modified:       stamp,
	}); err != nil {
		return withKind(ErrEncode, err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return withKind(ErrEncode, err)
	}
	sw, err := f.NewStreamWriter(e.opts.SheetName)
	if err != nil {
		return withKind(ErrEncode, err)
	}

	var header []string
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rows.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if header == nil {
			header = row.Columns
			if err := writeXLSXHeader(sw, header, headerStyle); err != nil {
				return withKind(ErrEncode, err)
			}
			line++
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return withKind(ErrEncode, err)
		}
		if err := sw.SetRow(cell, xlsxValues(row, header)); err != nil {
			return withKind(ErrEncode, fmt.Errorf("failed to write row %d: %w", line, err))
		}
		line++
	}

	if err := sw.Flush(); err != nil {
		return withKind(ErrCommit, fmt.Errorf("failed to flush worksheet: %w", err))
	}
	if err := f.Write(w); err != nil {
		return withKind(ErrCommit, fmt.Errorf("failed to write workbook: %w", err))
	}
	return nil
}

func writeXLSXHeader(sw *excelize.StreamWriter, header []string, styleID int) error {
	if len(header) == 0 {
		return nil
	}
	if err := sw.SetColWidth(1, len(header), defaultColumnWidth); err != nil {
		return err
	}
	labels := make([]any, len(header))
	for i, h := range header {
		labels[i] = h
	}
	return sw.SetRow("A1", labels, excelize.RowOpts{StyleID: styleID})
}

func xlsxValues(row Row, header []string) []any {
	out := make([]any, len(header))
	for i, col := range header {
		var v any
		if i < len(row.Columns) && row.Columns[i] == col {
			v = row.Values[i]
		} else {
			v, _ = row.Get(col)
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[i] = v
	}
	return out
}
