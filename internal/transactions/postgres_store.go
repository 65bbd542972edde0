package transactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/pagination"
	"github.com/mbd888/walletguard/internal/risk"
)

// PostgresStore persists analyses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const analysisColumns = `id, hash, from_address, to_address, value, token_symbol,
	gas_price, gas_limit, data, risk_score, risk_level, risk_source, ai_reasoning,
	threats, contract_analysis, phishing_detected, timestamp_ms, status, network_id`

func (p *PostgresStore) Create(ctx context.Context, a *Analysis) error {
	var report []byte
	if a.ContractAnalysis != nil {
		var err error
		report, err = json.Marshal(a.ContractAnalysis)
		if err != nil {
			return fmt.Errorf("transactions: encode contract analysis: %w", err)
		}
	}
	threats := a.Threats
	if threats == nil {
		threats = []string{}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		a.ID, a.Hash, a.From, a.To, a.Value, a.TokenSymbol,
		a.GasPrice, a.GasLimit, a.Data, a.RiskScore, string(a.RiskLevel), nullString(string(a.RiskSource)), a.AIReasoning,
		pq.Array(threats), nullBytes(report), a.PhishingDetected, a.Timestamp, string(a.Status), a.NetworkID,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Analysis, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM transactions WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (p *PostgresStore) List(ctx context.Context, limit int, after *pagination.Cursor) ([]*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM transactions`
	var args []interface{}
	if after != nil {
		query += ` WHERE (timestamp_ms, id) < ($1, $2)`
		args = append(args, after.Timestamp, after.ID)
	}
	query += ` ORDER BY timestamp_ms DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanAnalyses(rows)
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (*Analysis, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE transactions SET status = $2 WHERE id = $1
		RETURNING `+analysisColumns, id, string(status))
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (p *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ActiveProtections: ActiveProtections}
	var avg sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'blocked'),
		       ROUND(AVG(risk_score)::numeric, 1)::float8
		FROM transactions`,
	).Scan(&st.TotalTransactionsScanned, &st.ThreatsBlocked, &avg)
	if err != nil {
		return nil, err
	}
	st.AverageRiskScore = avg.Float64
	return st, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(sc scanner) (*Analysis, error) {
	a := &Analysis{}
	var (
		level, status string
		source        sql.NullString
		report        []byte
		threats       pq.StringArray
	)
	err := sc.Scan(
		&a.ID, &a.Hash, &a.From, &a.To, &a.Value, &a.TokenSymbol,
		&a.GasPrice, &a.GasLimit, &a.Data, &a.RiskScore, &level, &source, &a.AIReasoning,
		&threats, &report, &a.PhishingDetected, &a.Timestamp, &status, &a.NetworkID,
	)
	if err != nil {
		return nil, err
	}
	a.RiskLevel = risk.Level(level)
	a.RiskSource = risk.Source(source.String)
	a.Status = Status(status)
	a.Threats = []string(threats)
	if a.Threats == nil {
		a.Threats = []string{}
	}
	if len(report) > 0 {
		a.ContractAnalysis = &contract.Report{}
		if err := json.Unmarshal(report, a.ContractAnalysis); err != nil {
			return nil, fmt.Errorf("transactions: decode contract analysis: %w", err)
		}
	}
	return a, nil
}

func scanAnalyses(rows *sql.Rows) ([]*Analysis, error) {
	result := []*Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

var _ Store = (*PostgresStore)(nil)
