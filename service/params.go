package service

import "time"

// Params carries one invocation's parameters as handed over by the
// orchestrator.
type Params struct {
	Command     string         `json:"command" yaml:"command"`
	CommandFile string         `json:"command_file" yaml:"command_file"`
	Args        map[string]any `json:"args" yaml:"args"`

	// Driver selects the warehouse: snowflake (default), bigquery or starrocks.
	Driver string `json:"driver" yaml:"driver"`

	URL      string `json:"url" yaml:"url"`
	Account  string `json:"account" yaml:"account"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`

	Database    string `json:"database" yaml:"database"`
	Schema      string `json:"schema" yaml:"schema"`
	Warehouse   string `json:"warehouse" yaml:"warehouse"`
	Role        string `json:"role" yaml:"role"`
	Timeout     int    `json:"timeout" yaml:"timeout"`
	Application string `json:"application" yaml:"application"`

	// BigQuery project/location and StarRocks host:port.
	Project  string `json:"project" yaml:"project"`
	Location string `json:"location" yaml:"location"`
	Host     string `json:"host" yaml:"host"`

	// Stream asks the warehouse for a row cursor. Defaults to true.
	Stream *bool `json:"stream" yaml:"stream"`

	FileExport     string         `json:"fileExport" yaml:"fileExport"`
	JSONFileExport string         `json:"jsonFileExport" yaml:"jsonFileExport"`
	XLSXFileExport string         `json:"xlsxFileExport" yaml:"xlsxFileExport"`
	XLSXSheetName  string         `json:"xlsxSheetName" yaml:"xlsxSheetName"`
	XLSXAuthorName string         `json:"xlsxAuthorName" yaml:"xlsxAuthorName"`
	CSVFileExport  string         `json:"csvFileExport" yaml:"csvFileExport"`
	CSVOptions     map[string]any `json:"csvOptions" yaml:"csvOptions"`
}

const (
	defaultTimeout     = 60 * time.Second
	defaultApplication = "runnerty"
	defaultDriver      = "snowflake"
)

// ConnectTimeout returns the login timeout, 60s when unset.
func (p Params) ConnectTimeout() time.Duration {
	if p.Timeout <= 0 {
		return defaultTimeout
	}
	return time.Duration(p.Timeout) * time.Millisecond
}

// ApplicationTag returns the client application name reported to the
// warehouse.
func (p Params) ApplicationTag() string {
	if p.Application == "" {
		return defaultApplication
	}
	return p.Application
}

// DriverName returns the configured warehouse driver.
func (p Params) DriverName() string {
	if p.Driver == "" {
		return defaultDriver
	}
	return p.Driver
}

// Streaming reports whether a row cursor should be requested.
func (p Params) Streaming() bool {
	return p.Stream == nil || *p.Stream
}
