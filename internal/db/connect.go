package db

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Endpoint describes how to reach one database: a sqlite file or a MySQL
// server. The primary store and the search index each get their own.
type Endpoint struct {
	Driver string
	Path   string
	Host   string
	Port   int
	User   string
	Name   string
}

// DSN builds a MySQL DSN for the given server and database. An empty
// database selects none, for CREATE DATABASE operations.
func DSN(host string, port int, user, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Connect opens a GORM connection to the endpoint.
func Connect(ep Endpoint) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch ep.Driver {
	case "", "sqlite":
		if ep.Path == "" {
			return nil, fmt.Errorf("db: sqlite path is required")
		}
		dialector = sqlite.Open(ep.Path)
	case "mysql":
		dialector = gormmysql.Open(DSN(ep.Host, ep.Port, ep.User, ep.Name))
	default:
		return nil, fmt.Errorf("db: unknown driver %q", ep.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", ep, err)
	}
	if ep.Driver != "mysql" {
		// SQLite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s: %w", ep, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// String renders the endpoint for error messages.
func (ep Endpoint) String() string {
	if ep.Driver == "mysql" {
		return fmt.Sprintf("mysql %s:%d/%s", ep.Host, ep.Port, ep.Name)
	}
	return "sqlite " + ep.Path
}

// ConnectAdmin opens a GORM connection to the MySQL server without selecting
// a specific database, used for CREATE DATABASE operations.
func ConnectAdmin(host string, port int, user string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(DSN(host, port, user, "")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", host, port, err)
	}
	return db, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
