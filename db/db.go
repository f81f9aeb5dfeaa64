package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database handle. It is constructed once at startup and passed
// by reference into every component that needs persistence.
type DB struct {
	db *sql.DB
}

const (
	//Accounts
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        username varchar(100) UNIQUE NOT NULL,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertAccount           = `INSERT INTO accounts(id, username, created_at) VALUES (?, ?, ?)`
	sqlSelectAccountById       = `SELECT id, username, created_at FROM accounts WHERE id = ?`
	sqlSelectAccountByUsername = `SELECT id, username, created_at FROM accounts WHERE username = ?`
)

// NewDB opens (or creates) the sqlite database at path and applies the
// schema. The caller owns the handle for the lifetime of the process.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = sqlDB.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
		}
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	// Optimize PRAGMAs for concurrent federation workload
	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA cache_size = -64000")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")
	sqlDB.Exec("PRAGMA auto_vacuum = INCREMENTAL")

	database := &DB{db: sqlDB}
	if err := database.RunMigrations(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) CreateAccount(username string) (error, *domain.Account) {
	acc := &domain.Account{
		Id:        uuid.New(),
		Username:  username,
		CreatedAt: time.Now(),
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount, acc.Id.String(), acc.Username, acc.CreatedAt)
		return err
	})
	if err != nil {
		return err, nil
	}
	return nil, acc
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectAccountById, id.String())
	var acc domain.Account
	var idStr string
	err := row.Scan(&idStr, &acc.Username, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectAccountByUsername, username)
	var acc domain.Account
	var idStr string
	err := row.Scan(&idStr, &acc.Username, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
