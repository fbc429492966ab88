package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/snowflakedb/gosnowflake"
	"golang.org/x/oauth2"
)

// SnowflakeConnector opens Snowflake connections authenticated with an OAuth
// access token.
type SnowflakeConnector struct {
	open func(cfg gosnowflake.Config) *sql.DB
}

func NewSnowflakeConnector() *SnowflakeConnector {
	return &SnowflakeConnector{
		open: func(cfg gosnowflake.Config) *sql.DB {
			return sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, cfg))
		},
	}
}

func snowflakeConfig(p Params, tok *oauth2.Token) gosnowflake.Config {
	return gosnowflake.Config{
		Account:       p.Account,
		User:          p.User,
		Authenticator: gosnowflake.AuthTypeOAuth,
		Token:         tok.AccessToken,
		Database:      p.Database,
		Schema:        p.Schema,
		Warehouse:     p.Warehouse,
		Role:          p.Role,
		LoginTimeout:  p.ConnectTimeout(),
		Application:   p.ApplicationTag(),
	}
}

func (c *SnowflakeConnector) Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error) {
	cfg := snowflakeConfig(p, tok)
	db := c.open(cfg)
	// one invocation, one connection
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, p.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Snowflake connection error: %w", err)
	}

	slog.InfoContext(ctx, "Connected to Snowflake",
		"account", cfg.Account,
		"database", cfg.Database,
		"warehouse", cfg.Warehouse,
		"application", cfg.Application,
	)
	return &sqlWarehouse{db: db, name: "snowflake"}, nil
}
