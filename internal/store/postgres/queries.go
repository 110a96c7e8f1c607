package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// commentColumns is the column list shared by every comment SELECT.
const commentColumns = `id, name, message, created_at`

func queryInsertComment(ctx context.Context, db executor, c *model.Comment) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO comments (id, name, message, created_at)
		VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()))
		RETURNING created_at`,
		c.ID, c.Name, c.Message, nullTime(c.CreatedAt),
	).Scan(&c.CreatedAt)
}

func queryListComments(ctx context.Context, db executor) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func queryGetComment(ctx context.Context, db executor, id string) (*model.Comment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE id = $1`,
		id,
	)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func queryDeleteComment(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryCountComments(ctx context.Context, db executor) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
