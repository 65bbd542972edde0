package alerts

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const alertColumns = `id, type, title, message, timestamp_ms, read, transaction_id`

func (p *PostgresStore) Create(ctx context.Context, a *Alert) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, string(a.Type), a.Title, a.Message, a.Timestamp, a.Read, nullString(a.TransactionID),
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (p *PostgresStore) List(ctx context.Context) ([]*Alert, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		ORDER BY timestamp_ms DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []*Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (p *PostgresStore) MarkRead(ctx context.Context, id string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE alerts SET read = TRUE WHERE id = $1
		RETURNING `+alertColumns, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (p *PostgresStore) MarkAllRead(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE alerts SET read = TRUE WHERE read = FALSE`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(sc scanner) (*Alert, error) {
	a := &Alert{}
	var (
		typ   string
		txnID sql.NullString
	)
	if err := sc.Scan(&a.ID, &typ, &a.Title, &a.Message, &a.Timestamp, &a.Read, &txnID); err != nil {
		return nil, err
	}
	a.Type = Type(typ)
	a.TransactionID = txnID.String
	return a, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
