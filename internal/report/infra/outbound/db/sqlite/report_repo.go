package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
)

type ReportRepoSQLite struct {
	db *sql.DB
}

func NewReportRepoSQLite(db *sql.DB) *ReportRepoSQLite {
	return &ReportRepoSQLite{db: db}
}

// ------------------ Helper DRY para insertar en outbox ------------------

func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id,aggregate_type,aggregate_id,event_type,payload,created_at,processed)
		 VALUES (?,?,?,?,?,?,0)`,
		evt.ID.String(), evt.AggregateType, evt.AggregateID, evt.EventType, string(payloadBytes), evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// ------------------ Métodos ------------------

// Create inserta solicitud y evento en transacción
func (r *ReportRepoSQLite) Create(ctx context.Context, rep *domain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO solicitacoes_relatorio (id,nome,status,data_criacao,data_processamento,observacoes,tentativas,version)
		 VALUES (?,?,?,?,?,?,?,?)`,
		rep.ID.String(), rep.Nome, string(rep.Status), rep.DataCriacao,
		nullTime(rep.DataProcessamento), nullString(rep.Observacoes), rep.Tentativas, rep.Version,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = domain.ErrReportAlreadyExists
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update es un compare-and-swap sobre (id, version) y deja el evento en
// outbox dentro de la misma transacción.
func (r *ReportRepoSQLite) Update(ctx context.Context, rep *domain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE solicitacoes_relatorio
		 SET nome=?, status=?, data_processamento=?, observacoes=?, tentativas=?, version=version+1
		 WHERE id=? AND version=?`,
		rep.Nome, string(rep.Status), nullTime(rep.DataProcessamento), nullString(rep.Observacoes),
		rep.Tentativas, rep.ID.String(), rep.Version,
	)
	if err != nil {
		return err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Distinguir conflicto de versión de solicitud inexistente,
		// dentro de la misma transacción.
		var one int
		scanErr := tx.QueryRowContext(ctx,
			`SELECT 1 FROM solicitacoes_relatorio WHERE id = ?`, rep.ID.String()).Scan(&one)
		switch scanErr {
		case nil:
			err = domain.ErrVersionConflict
		case sql.ErrNoRows:
			err = domain.ErrReportNotFound
		default:
			err = scanErr
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	rep.Version++
	return nil
}

// GetByID con manejo de errores en uuid.Parse
func (r *ReportRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReportRequest, error) {
	query := `SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		FROM solicitacoes_relatorio WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id.String())

	rep, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// List devuelve todas las solicitudes, las más recientes primero.
func (r *ReportRepoSQLite) List(ctx context.Context) ([]*domain.ReportRequest, error) {
	return r.queryReports(ctx,
		`SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		 FROM solicitacoes_relatorio ORDER BY data_criacao DESC`)
}

// ListByStatus filtra por estado, las más recientes primero.
func (r *ReportRepoSQLite) ListByStatus(ctx context.Context, status domain.ReportStatus) ([]*domain.ReportRequest, error) {
	return r.queryReports(ctx,
		`SELECT id, nome, status, data_criacao, data_processamento, observacoes, tentativas, version
		 FROM solicitacoes_relatorio WHERE status = ? ORDER BY data_criacao DESC`, string(status))
}

func (r *ReportRepoSQLite) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM solicitacoes_relatorio WHERE id = ?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ReportRepoSQLite) queryReports(ctx context.Context, query string, args ...interface{}) ([]*domain.ReportRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.ReportRequest
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// scanner cubre tanto a *sql.Row como a *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*domain.ReportRequest, error) {
	var rep domain.ReportRequest
	var idStr, statusStr string
	var dataProc sql.NullTime
	var obs sql.NullString

	if err := s.Scan(&idStr, &rep.Nome, &statusStr, &rep.DataCriacao, &dataProc, &obs, &rep.Tentativas, &rep.Version); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	rep.ID = parsedID
	rep.Status = domain.ReportStatus(statusStr)
	if dataProc.Valid {
		t := dataProc.Time
		rep.DataProcessamento = &t
	}
	if obs.Valid {
		rep.Observacoes = obs.String
	}

	return &rep, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ---------------- Patrón Outbox en Eventos-----------------

// FetchPendingOutbox obtiene eventos pendientes y maneja errores de UUID y JSON
func (r *ReportRepoSQLite) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox
		 WHERE processed = 0
		 ORDER BY created_at
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var idStr, aggregateType, aggregateID, eventType, payloadStr string
		var createdAt time.Time

		if err := rows.Scan(&idStr, &aggregateType, &aggregateID, &eventType, &payloadStr, &createdAt); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", parsedID, err)
		}

		events = append(events, sharedDomain.OutboxEvent{
			ID:            parsedID,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     eventType,
			Payload:       payload,
			CreatedAt:     createdAt,
			Processed:     false,
		})
	}

	return events, rows.Err()
}

// MarkOutboxProcessed marca un evento como procesado y devuelve error si falla
func (r *ReportRepoSQLite) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET processed = 1 WHERE id = ?`,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %s as processed: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for outbox event %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("no outbox event found with id %s", id)
	}

	return nil
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea las tablas si no existen
func InitSQLite(db *sql.DB) error {
	// Tabla de solicitudes
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS solicitacoes_relatorio (
            id TEXT PRIMARY KEY,
            nome TEXT NOT NULL,
            status TEXT NOT NULL,
            data_criacao DATETIME NOT NULL,
            data_processamento DATETIME,
            observacoes TEXT,
            tentativas INTEGER NOT NULL DEFAULT 0,
            version INTEGER NOT NULL DEFAULT 1
        )
    `)
	if err != nil {
		return err
	}

	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_solicitacoes_status ON solicitacoes_relatorio(status)`); err != nil {
		return err
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_solicitacoes_data_criacao ON solicitacoes_relatorio(data_criacao)`); err != nil {
		return err
	}

	// Tabla de Outbox
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS outbox (
            id TEXT PRIMARY KEY,
            aggregate_type TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            processed BOOLEAN NOT NULL DEFAULT 0
        )
    `)
	return err
}

// Verificación estática
var _ domain.ReportRepository = (*ReportRepoSQLite)(nil)
