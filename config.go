package main

import (
	"fmt"
	"os"
	"sf-exporter/service"
	"strconv"

	"gopkg.in/yaml.v3"
)

// jobFlags are the command line overrides of the run command.
type jobFlags struct {
	paramsFile  string
	command     string
	commandFile string
	args        map[string]string
	driver      string
	jsonFile    string
	xlsxFile    string
	csvFile     string
	noStream    bool
}

// loadParams builds the invocation parameters: environment first, then the
// params file, then flags.
func loadParams(f jobFlags) (service.Params, error) {
	p := paramsFromEnv()

	if f.paramsFile != "" {
		data, err := os.ReadFile(f.paramsFile)
		if err != nil {
			return p, fmt.Errorf("failed to read params file: %w", err)
		}
		// YAML is a superset of JSON, one decoder covers both
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("failed to parse params file %s: %w", f.paramsFile, err)
		}
	}

	if f.command != "" {
		p.Command = f.command
	}
	if f.commandFile != "" {
		p.CommandFile = f.commandFile
	}
	if len(f.args) > 0 && p.Args == nil {
		p.Args = make(map[string]any, len(f.args))
	}
	for k, v := range f.args {
		p.Args[k] = v
	}
	if f.driver != "" {
		p.Driver = f.driver
	}
	if f.jsonFile != "" {
		p.JSONFileExport = f.jsonFile
	}
	if f.xlsxFile != "" {
		p.XLSXFileExport = f.xlsxFile
	}
	if f.csvFile != "" {
		p.CSVFileExport = f.csvFile
	}
	if f.noStream {
		stream := false
		p.Stream = &stream
	}
	return p, nil
}

func paramsFromEnv() service.Params {
	p := service.Params{
		Command:        os.Getenv("JOB_COMMAND"),
		CommandFile:    os.Getenv("JOB_COMMAND_FILE"),
		Driver:         os.Getenv("WAREHOUSE_DRIVER"),
		URL:            os.Getenv("OAUTH_TOKEN_URL"),
		Account:        os.Getenv("SNOWFLAKE_ACCOUNT"),
		User:           os.Getenv("WAREHOUSE_USER"),
		Password:       os.Getenv("WAREHOUSE_PASSWORD"),
		Database:       os.Getenv("WAREHOUSE_DATABASE"),
		Schema:         os.Getenv("WAREHOUSE_SCHEMA"),
		Warehouse:      os.Getenv("SNOWFLAKE_WAREHOUSE"),
		Role:           os.Getenv("SNOWFLAKE_ROLE"),
		Application:    os.Getenv("WAREHOUSE_APPLICATION"),
		Project:        os.Getenv("GCP_PROJECT_ID"),
		Location:       os.Getenv("BIGQUERY_LOCATION"),
		Host:           os.Getenv("STARROCKS_HOST"),
		JSONFileExport: os.Getenv("JOB_JSON_FILE"),
		XLSXFileExport: os.Getenv("JOB_XLSX_FILE"),
		CSVFileExport:  os.Getenv("JOB_CSV_FILE"),
	}
	if v := os.Getenv("WAREHOUSE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Timeout = n
		}
	}
	return p
}
