package service

// TargetKind enumerates the export destinations.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetJSON
	TargetXLSX
	TargetCSV
)

func (k TargetKind) String() string {
	switch k {
	case TargetJSON:
		return "json"
	case TargetXLSX:
		return "xlsx"
	case TargetCSV:
		return "csv"
	}
	return "none"
}

// Target is the single destination of one invocation. Only the fields of the
// active Kind are set.
type Target struct {
	Kind      TargetKind
	Path      string
	SheetName string
	Author    string
	CSV       map[string]any
}

// ResolveTarget picks the destination from p. When several export options are
// set the first one in this order wins: fileExport, jsonFileExport,
// xlsxFileExport, csvFileExport.
//
// fileExport is a JSON export; if jsonFileExport is also present its path is
// used.
func ResolveTarget(p Params) Target {
	switch {
	case p.FileExport != "":
		path := p.FileExport
		if p.JSONFileExport != "" {
			path = p.JSONFileExport
		}
		return Target{Kind: TargetJSON, Path: path}
	case p.JSONFileExport != "":
		return Target{Kind: TargetJSON, Path: p.JSONFileExport}
	case p.XLSXFileExport != "":
		return Target{
			Kind:      TargetXLSX,
			Path:      p.XLSXFileExport,
			SheetName: p.XLSXSheetName,
			Author:    p.XLSXAuthorName,
		}
	case p.CSVFileExport != "":
		return Target{Kind: TargetCSV, Path: p.CSVFileExport, CSV: p.CSVOptions}
	}
	return Target{Kind: TargetNone}
}

// Encoder returns the encoder writing this target's format, nil for
// TargetNone.
func (t Target) Encoder() (Encoder, error) {
	switch t.Kind {
	case TargetJSON:
		return NewJSONEncoder(), nil
	case TargetXLSX:
		opts := XLSXOptions{SheetName: t.SheetName, Author: t.Author}
		if err := opts.Validate(); err != nil {
			return nil, withKind(ErrEncode, err)
		}
		return NewXLSXEncoder(opts), nil
	case TargetCSV:
		opts, err := ParseCSVOptions(t.CSV)
		if err != nil {
			return nil, withKind(ErrEncode, err)
		}
		return NewCSVEncoder(opts), nil
	}
	return nil, nil
}
