package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"cloud.google.com/go/bigquery"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// BigQueryService is a BigQuery client bound to one project and location.
type BigQueryService struct {
	client    *bigquery.Client
	projectID string
	location  string
}

func NewBigQueryService(ctx context.Context, projectID, location string, opts ...option.ClientOption) (*BigQueryService, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	return &BigQueryService{
		client:    client,
		projectID: projectID,
		location:  location,
	}, nil
}

func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// Execute runs sqlQuery and pages through the result with a RowIterator.
func (s *BigQueryService) Execute(ctx context.Context, sqlQuery string, stream bool) (RowSource, error) {
	q := s.client.Query(sqlQuery)
	q.Location = s.location

	it, err := q.Read(ctx)
	if err != nil {
		return nil, withKind(ErrExecution, fmt.Errorf("failed to execute query on BigQuery: %w", err))
	}
	slog.InfoContext(ctx, "BigQuery query started", "project_id", s.projectID, "total_rows", it.TotalRows)

	src := newBigQueryRowSource(it.Next, func() bigquery.Schema { return it.Schema })
	if stream {
		return src, nil
	}
	all, err := Drain(src)
	if err != nil {
		return nil, withKind(ErrExecution, err)
	}
	return NewSliceSource(src.Columns(), all), nil
}

// newBigQueryRowSource fetches the first row up front: the iterator only
// knows the schema once the first page was read, even for an empty result.
func newBigQueryRowSource(next func(dst any) error, schema func() bigquery.Schema) RowSource {
	read := func(cols []string) (Row, error) {
		var values []bigquery.Value
		if err := next(&values); err != nil {
			return Row{}, err
		}
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = convertBQValue(v)
		}
		return Row{Columns: cols, Values: out}, nil
	}

	first, firstErr := read(nil)
	cols := schemaColumns(schema())
	first.Columns = cols

	peeked := true
	return NewCursorSource(cols, func() (Row, error) {
		if peeked {
			peeked = false
			if firstErr != nil {
				return Row{}, firstErr
			}
			return first, nil
		}
		return read(cols)
	}, nil)
}

func schemaColumns(schema bigquery.Schema) []string {
	if len(schema) == 0 {
		return nil
	}
	cols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = f.Name
	}
	return cols
}

// convertBQValue converts BigQuery values into scalars the encoders know.
func convertBQValue(v bigquery.Value) any {
	switch t := v.(type) {
	case *big.Rat:
		if t == nil {
			return nil
		}
		f, _ := t.Float64()
		return f
	case []byte:
		return string(t)
	}
	return v
}

// BigQueryConnector authenticates BigQuery with the invocation's OAuth token.
type BigQueryConnector struct{}

func NewBigQueryConnector() *BigQueryConnector {
	return &BigQueryConnector{}
}

func (c *BigQueryConnector) Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error) {
	projectID := p.Project
	if projectID == "" {
		slog.InfoContext(ctx, "project not set, attempting to detect from credentials...")
		creds, err := google.FindDefaultCredentials(ctx, bigquery.Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		if creds.ProjectID == "" {
			return nil, fmt.Errorf("project is not set and could not be detected from credentials")
		}
		projectID = creds.ProjectID
	}

	svc, err := NewBigQueryService(ctx, projectID, p.Location,
		option.WithTokenSource(oauth2.StaticTokenSource(tok)),
		option.WithUserAgent(p.ApplicationTag()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	slog.InfoContext(ctx, "Connected to BigQuery", "project_id", projectID, "location", p.Location)
	return svc, nil
}

var _ Warehouse = (*BigQueryService)(nil)
