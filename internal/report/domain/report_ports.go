package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrReportNotFound      = errors.New("report not found")
	ErrReportAlreadyExists = errors.New("report already exists")
	ErrInvalidReport       = errors.New("invalid report")
	ErrVersionConflict     = errors.New("report version conflict")
)

// ValidarNome valida el nombre de una solicitud antes de crearla.
func ValidarNome(nome string) error {
	if strings.TrimSpace(nome) == "" {
		return fmt.Errorf("%w: nome vacío", ErrInvalidReport)
	}
	if len(nome) > MaxNomeLen {
		return fmt.Errorf("%w: nome supera %d caracteres", ErrInvalidReport, MaxNomeLen)
	}
	return nil
}

// ---------- Interfaces (Ports) ----------

// ReportRepository define las operaciones persistentes para ReportRequest.
// Create y Update insertan el evento outbox en la misma transacción que la
// escritura de la entidad.
type ReportRepository interface {
	// Debe devolver ErrReportAlreadyExists si la entidad ya existe.
	Create(ctx context.Context, r *ReportRequest, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrReportNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*ReportRequest, error)

	// Update es un compare-and-swap sobre (id, version): devuelve
	// ErrVersionConflict si otra escritura ganó la carrera y
	// ErrReportNotFound si la solicitud no existe.
	Update(ctx context.Context, r *ReportRequest, evt sharedDomain.OutboxEvent) error

	// List devuelve todas las solicitudes, las más recientes primero.
	List(ctx context.Context) ([]*ReportRequest, error)

	// ListByStatus filtra por estado, las más recientes primero.
	ListByStatus(ctx context.Context, status ReportStatus) ([]*ReportRequest, error)

	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// FetchPendingOutbox obtiene los eventos no procesados, hasta un máximo
	FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error)

	// MarkOutboxProcessed marca un evento como publicado
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}

type ReportCache interface {
	// Get intenta poblar dest (puntero) con el valor asociado a la key.
	// Devuelve (true, nil) si hay hit y dest fue rellenado.
	// Devuelve (false, nil) si es miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set serializa y guarda el valor con TTL en segundos.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error

	// Delete elimina la key del cache.
	Delete(ctx context.Context, key string) error
}

// DailyReportTrend es una fila agregada del sink analítico.
type DailyReportTrend struct {
	Day              time.Time
	SolicitadosCount uint64
	CompletadosCount uint64
	FalhadosCount    uint64
}

// ReportAnalyticsRepository registra solicitudes procesadas para analítica.
type ReportAnalyticsRepository interface {
	LogProcessed(ctx context.Context, reports []*ReportRequest) error
	GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyReportTrend, error)
	GetAverageProcessingTime(ctx context.Context, start, end time.Time) (time.Duration, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

// CacheKeyByID forma una key consistente para cache usando ID.
func CacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("report:id:%s", id.String())
}
