package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type ReportRepoPostgres struct {
	db *sql.DB
}

func NewReportRepoPostgres(db *sql.DB) *ReportRepoPostgres {
	return &ReportRepoPostgres{db: db}
}

// ------------------ Helper DRY para insertar en outbox ------------------

func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, false)`,
		evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, payloadBytes, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ------------------ CRUD + Outbox ------------------

// Create inserta solicitud y evento en transacción
func (r *ReportRepoPostgres) Create(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO solicitacoes_relatorio (id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.ID, rep.Nome, string(rep.Status), rep.DataCriacao,
		rep.DataProcessamento, emptyToNull(rep.Observacoes), rep.Tentativas, rep.Version,
	)
	if err != nil {
		// 23505 = unique_violation
		if strings.Contains(err.Error(), "23505") {
			err = reportDomain.ErrReportAlreadyExists
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update es un compare-and-swap sobre (id, version) con evento outbox en
// la misma transacción.
func (r *ReportRepoPostgres) Update(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE solicitacoes_relatorio
		 SET nome=$1, status=$2, data_processamento=$3, observacoes=$4, tentativas=$5, version=version+1
		 WHERE id=$6 AND version=$7`,
		rep.Nome, string(rep.Status), rep.DataProcessamento, emptyToNull(rep.Observacoes),
		rep.Tentativas, rep.ID, rep.Version,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		var one int
		scanErr := tx.QueryRowContext(ctx,
			`SELECT 1 FROM solicitacoes_relatorio WHERE id=$1`, rep.ID).Scan(&one)
		switch scanErr {
		case nil:
			err = reportDomain.ErrVersionConflict
		case sql.ErrNoRows:
			err = reportDomain.ErrReportNotFound
		default:
			err = scanErr
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	rep.Version++
	return nil
}

// ------------------ Lectura ------------------

func (r *ReportRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*reportDomain.ReportRequest, error) {
	query := `SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		FROM solicitacoes_relatorio WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)

	rep, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, reportDomain.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rep, nil
}

func (r *ReportRepoPostgres) List(ctx context.Context) ([]*reportDomain.ReportRequest, error) {
	return r.queryReports(ctx,
		`SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		 FROM solicitacoes_relatorio ORDER BY data_criacao DESC`)
}

func (r *ReportRepoPostgres) ListByStatus(ctx context.Context, status reportDomain.ReportStatus) ([]*reportDomain.ReportRequest, error) {
	return r.queryReports(ctx,
		`SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		 FROM solicitacoes_relatorio WHERE status=$1 ORDER BY data_criacao DESC`, string(status))
}

func (r *ReportRepoPostgres) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM solicitacoes_relatorio WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *ReportRepoPostgres) queryReports(ctx context.Context, query string, args ...interface{}) ([]*reportDomain.ReportRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*reportDomain.ReportRequest
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*reportDomain.ReportRequest, error) {
	var rep reportDomain.ReportRequest
	var idStr, statusStr string
	var dataProc sql.NullTime
	var obs sql.NullString

	if err := s.Scan(&idStr, &rep.Nome, &statusStr, &rep.DataCriacao, &dataProc, &obs, &rep.Tentativas, &rep.Version); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, reportDomain.ErrInvalidReport
	}
	rep.ID = parsedID
	rep.Status = reportDomain.ReportStatus(statusStr)
	if dataProc.Valid {
		t := dataProc.Time
		rep.DataProcessamento = &t
	}
	if obs.Valid {
		rep.Observacoes = obs.String
	}

	return &rep, nil
}

func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ------------------ Outbox ------------------

func (r *ReportRepoPostgres) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox WHERE processed=false ORDER BY created_at LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadBytes []byte

		if err := rows.Scan(&evt.ID, &evt.AggregateType, &evt.AggregateID, &evt.EventType, &payloadBytes, &evt.CreatedAt); err != nil {
			return nil, err
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", evt.ID, err)
		}
		evt.Payload = payload

		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *ReportRepoPostgres) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET processed=true WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

// ------------------ Inicialización ------------------

func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS solicitacoes_relatorio (
		id UUID PRIMARY KEY,
		nome VARCHAR(200) NOT NULL,
		status VARCHAR(50) NOT NULL,
		data_criacao TIMESTAMP NOT NULL DEFAULT now(),
		data_processamento TIMESTAMP,
		observacoes VARCHAR(500),
		tentativas INTEGER NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return err
	}

	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_solicitacoes_status ON solicitacoes_relatorio(status)`); err != nil {
		return err
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_solicitacoes_data_criacao ON solicitacoes_relatorio(data_criacao)`); err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	)`)
	return err
}

// Verificación estática
var _ reportDomain.ReportRepository = (*ReportRepoPostgres)(nil)
