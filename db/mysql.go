package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dekarrin/grocer"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that indicate an integrity constraint failure.
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1216: true, // no referenced parent row (old)
	1217: true, // row is referenced (old)
	1451: true, // row is referenced
	1452: true, // no referenced parent row
}

// MySQL is the Dialect for MySQL and MariaDB. It has no RETURNING support, so
// writes are followed by a read inside the same transaction.
type MySQL struct{}

func (MySQL) Name() grocer.DBType { return grocer.DatabaseMySQL }
func (MySQL) Placeholder(n int) string { return "?" }
func (MySQL) Returning() bool { return false }
func (MySQL) VersionQuery() string { return "SELECT VERSION()" }

// ConvertError converts an error from the MySQL driver.
func (MySQL) ConvertError(err error) error {
	if err, ok := convertCommon(err); ok {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && mysqlConstraintErrors[myErr.Number] {
		return grocer.NewError("", err, grocer.ErrConstraintViolation)
	}
	return err
}

// MySQLDSN builds the driver DSN for cfg.
func MySQLDSN(cfg grocer.DatabaseConfig) string {
	mc := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		DBName:               cfg.Name,
		ParseTime:            true,
		AllowNativePasswords: true,

		// report matched rather than changed rows so an UPDATE that writes
		// identical values is not mistaken for a missing row.
		ClientFoundRows: true,
	}
	return mc.FormatDSN()
}

func openMySQL(ctx context.Context, cfg grocer.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("mysql", MySQLDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, MySQL{}), nil
}
