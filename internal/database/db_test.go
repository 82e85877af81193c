package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "db_test.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return db
}

func TestExecReturningID(t *testing.T) {
	db := newTestDB(t)

	first, err := db.ExecReturningID(`INSERT INTO items (name) VALUES (?)`, "one")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	second, err := db.ExecReturningID(`INSERT INTO items (name) VALUES (?)`, "two")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if second <= first {
		t.Errorf("ids not increasing: %d then %d", first, second)
	}
}

func TestWithTxCommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(`INSERT INTO items (name) VALUES (?)`, "kept")
		return err
	})
	if err != nil {
		t.Fatalf("commit transaction failed: %v", err)
	}

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecReturningID(`INSERT INTO items (name) VALUES (?)`, "discarded"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("rollback error = %v, want boom", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want only the committed one", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Exec(`INSERT INTO items (name) VALUES (?)`, "dup"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_, err := db.Exec(`INSERT INTO items (name) VALUES (?)`, "dup")
	if err == nil {
		t.Fatal("duplicate insert succeeded")
	}
	if !db.Dialect.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if db.Dialect.IsUniqueViolation(errors.New("unrelated")) {
		t.Error("unrelated error classified as unique violation")
	}
}
