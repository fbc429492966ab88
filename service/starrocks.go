package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/oauth2"
)

// StarRocksConnector opens StarRocks connections over the MySQL protocol. The
// OAuth access token is sent as a clear-text password, which is what the
// StarRocks OAuth2 authentication plugin expects.
type StarRocksConnector struct {
	open func(cfg *mysql.Config) (*sql.DB, error)
}

func NewStarRocksConnector() *StarRocksConnector {
	return &StarRocksConnector{
		open: func(cfg *mysql.Config) (*sql.DB, error) {
			conn, err := mysql.NewConnector(cfg)
			if err != nil {
				return nil, err
			}
			return sql.OpenDB(conn), nil
		},
	}
}

func starRocksConfig(p Params, tok *oauth2.Token) (*mysql.Config, error) {
	host := p.Host
	if host == "" {
		host = os.Getenv("STARROCKS_HOST")
	}
	if host == "" {
		return nil, fmt.Errorf("missing StarRocks host: set host or STARROCKS_HOST")
	}
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = tok.AccessToken
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = p.Database
	cfg.AllowCleartextPasswords = true
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Timeout = p.ConnectTimeout()
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg, nil
}

func (c *StarRocksConnector) Connect(ctx context.Context, p Params, tok *oauth2.Token) (Warehouse, error) {
	cfg, err := starRocksConfig(p, tok)
	if err != nil {
		return nil, err
	}
	db, err := c.open(cfg)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to StarRocks: %w", err)
	}
	slog.InfoContext(ctx, "Connected to StarRocks", "addr", cfg.Addr, "database", cfg.DBName)
	return &sqlWarehouse{db: db, name: "starrocks"}, nil
}
