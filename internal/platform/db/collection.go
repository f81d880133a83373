package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Collection stores records of type T in one table. T must carry db tags
// matching the table columns.
type Collection[T store.Record] struct {
	pool  *pgxpool.Pool
	table Table
}

func NewCollection[T store.Record](pool *pgxpool.Pool, table Table) *Collection[T] {
	return &Collection[T]{pool: pool, table: table}
}

func (c *Collection[T]) conn(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return c.pool
}

func (c *Collection[T]) Find(ctx context.Context, q store.Query) ([]*T, error) {
	sql, args, err := BuildSelect(c.table, q)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.table.Name, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.table.Name, err)
	}
	return out, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	recs, err := c.Find(ctx, store.Query{Where: []store.Condition{store.Eq("id", id)}})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return recs[0], nil
}

func (c *Collection[T]) Insert(ctx context.Context, rec *T) error {
	sql, args, err := BuildInsert(c.table, (*rec).Fields())
	if err != nil {
		return err
	}
	if _, err := c.conn(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", c.table.Name, err)
	}
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, fields store.Fields) (*T, error) {
	sql, args, err := BuildUpdate(c.table, id, fields)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.table.Name, id, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.table.Name, id, err)
	}
	return rec, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := c.conn(ctx).Exec(ctx, "DELETE FROM "+c.table.Name+" WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.table.Name, id, err)
	}
	return tag.RowsAffected() > 0, nil
}
