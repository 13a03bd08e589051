// Package connection contains the SQLConnection type and methods for manipulating and querying the connection
package connection

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/5l1v3r1/memsql-top/src/args"
)

// SQLConnection represents a wrapper around a MemSQL aggregator connection
type SQLConnection struct {
	Connection *sqlx.DB
	Host       string
}

// NewConnection creates a new SQLConnection from args
func NewConnection(arguments *args.ArgumentList) (*SQLConnection, error) {
	db, err := sqlx.Connect("mysql", CreateDSN(arguments))
	if err != nil {
		return nil, err
	}
	return &SQLConnection{
		Connection: db,
		Host:       arguments.Hostname,
	}, nil
}

// Close closes the SQL connection. If an error occurs
// it is logged as a warning.
func (sc SQLConnection) Close() {
	if err := sc.Connection.Close(); err != nil {
		log.Warnf("Unable to close SQL connection: %s", err.Error())
	}
}

// Query runs a query and loads results into v
func (sc SQLConnection) Query(v interface{}, query string) error {
	return sc.Connection.Select(v, query)
}

// Get runs a single-row query and loads the result into v
func (sc SQLConnection) Get(v interface{}, query string) error {
	return sc.Connection.Get(v, query)
}

// Queryx runs a query and returns a set of rows
func (sc SQLConnection) Queryx(query string) (*sqlx.Rows, error) {
	return sc.Connection.Queryx(query)
}

// CreateDSN takes in args and creates the driver DSN.
// All args should be validated before calling this.
func CreateDSN(arguments *args.ArgumentList) string {
	cfg := mysql.NewConfig()
	cfg.User = arguments.Username
	cfg.Passwd = arguments.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(arguments.Hostname, arguments.Port)
	cfg.DBName = arguments.Database

	if t, err := strconv.Atoi(arguments.Timeout); err == nil && t > 0 {
		cfg.Timeout = time.Duration(t) * time.Second
		cfg.ReadTimeout = cfg.Timeout
	}

	dsn := cfg.FormatDSN()
	log.Debugf("CreateDSN: %s", dsn)
	return dsn
}
