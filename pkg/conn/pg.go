// Package conn bootstraps the PostgreSQL connection the bot persists
// its positions and ledger through.
package conn

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"

	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// PostgresOption defines connection options for PostgreSQL.
type PostgresOption struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string

	// ConnString overrides all other fields when set.
	ConnString string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Config *gorm.Config
}

// Postgres wraps the shared connection pool.
type Postgres struct {
	opt PostgresOption
	db  *gorm.DB
}

// NewPostgres opens the pool and applies the pool limits.
func NewPostgres(option PostgresOption) (*Postgres, error) {
	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(option.dsn()), config)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(orDefault(option.MaxOpenConns, defaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(orDefault(option.MaxIdleConns, defaultMaxIdleConns))
	if option.ConnMaxLifetime <= 0 {
		option.ConnMaxLifetime = defaultConnMaxLifetime
	}
	sqlDB.SetConnMaxLifetime(option.ConnMaxLifetime)

	return &Postgres{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (p *Postgres) DB() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Ping verifies the pool can reach the server.
func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PostgresOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
