package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle. Inside WithTx the same query methods run on
// the transaction instead.
type DB struct {
	*sql.DB
	tx *sql.Tx
}

func New(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.DB.Exec(schema)
	return err
}

// WithTx runs fn in a single transaction. Any error returned by fn rolls
// back every write fn made.
func (db *DB) WithTx(fn func(tx *DB) error) error {
	if db.tx != nil {
		return fn(db)
	}
	sqlTx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&DB{DB: db.DB, tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	if db.tx != nil {
		return db.tx.Exec(query, args...)
	}
	return db.DB.Exec(query, args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	if db.tx != nil {
		return db.tx.Query(query, args...)
	}
	return db.DB.Query(query, args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	if db.tx != nil {
		return db.tx.QueryRow(query, args...)
	}
	return db.DB.QueryRow(query, args...)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
