package service

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Warehouse is an open connection owned by a single invocation.
type Warehouse interface {
	// Execute runs sqlText. With stream set the rows are pulled from a
	// cursor, otherwise the whole result is materialized first.
	Execute(ctx context.Context, sqlText string, stream bool) (RowSource, error)
	Close() error
}

// Connector opens a Warehouse authenticated with tok.
type Connector interface {
	Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error)

func (f ConnectorFunc) Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error) {
	return f(ctx, p, tok)
}

// Drivers dispatches to a Connector by Params.Driver.
type Drivers map[string]Connector

// DefaultDrivers returns the built-in warehouse connectors.
func DefaultDrivers() Drivers {
	return Drivers{
		"snowflake": NewSnowflakeConnector(),
		"bigquery":  NewBigQueryConnector(),
		"starrocks": NewStarRocksConnector(),
	}
}

func (d Drivers) Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error) {
	c, ok := d[p.DriverName()]
	if !ok {
		return nil, fmt.Errorf("unknown warehouse driver %q", p.DriverName())
	}
	return c.Connect(ctx, p, tok)
}
