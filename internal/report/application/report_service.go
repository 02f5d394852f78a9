package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/reportlab/internal/shared/domain/events"
	"github.com/davicafu/reportlab/pkg/utils"
	"github.com/google/uuid"
)

// ReportService define los casos de uso relacionados con ReportRequest.
type ReportService struct {
	repo      domain.ReportRepository
	cache     domain.ReportCache
	analytics domain.ReportAnalyticsRepository
	workDelay time.Duration
	log       *zap.Logger
}

// NewReportService constructor. cache y analytics pueden ser nil.
func NewReportService(
	repo domain.ReportRepository,
	cache domain.ReportCache,
	analytics domain.ReportAnalyticsRepository,
	workDelay time.Duration,
	log *zap.Logger,
) *ReportService {
	return &ReportService{
		repo:      repo,
		cache:     cache,
		analytics: analytics,
		workDelay: workDelay,
		log:       log,
	}
}

// SolicitarRelatorio crea la solicitud y deja el evento en la tabla outbox
// dentro de la misma transacción. El relayer se encarga de publicarlo.
func (s *ReportService) SolicitarRelatorio(ctx context.Context, nome string) (*domain.ReportRequest, error) {
	if err := domain.ValidarNome(nome); err != nil {
		return nil, err
	}

	report := &domain.ReportRequest{
		ID:          uuid.New(),
		Nome:        nome,
		Status:      domain.StatusPendente,
		DataCriacao: time.Now().UTC(),
		Version:     1,
	}

	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "report",
		AggregateID:   report.ID.String(),
		EventType:     domain.ReportRequested,
		Payload: sharedEvents.ReportRequested{
			ID:   report.ID,
			Nome: report.Nome,
		},
		CreatedAt: time.Now().UTC(),
		Processed: false,
	}

	if err := s.repo.Create(ctx, report, evt); err != nil {
		return nil, err
	}

	s.cacheSetBackground(report)

	s.log.Info("Relatório solicitado",
		zap.String("report_id", report.ID.String()),
		zap.String("nome", report.Nome),
	)

	return report, nil
}

// ListarRelatorios devuelve todas las solicitudes, las más recientes primero.
func (s *ReportService) ListarRelatorios(ctx context.Context) ([]*domain.ReportRequest, error) {
	return s.repo.List(ctx)
}

// ListarPorStatus filtra las solicitudes por estado.
func (s *ReportService) ListarPorStatus(ctx context.Context, status domain.ReportStatus) ([]*domain.ReportRequest, error) {
	return s.repo.ListByStatus(ctx, status)
}

// ObterRelatorio obtiene una solicitud (primero intenta desde cache).
func (s *ReportService) ObterRelatorio(ctx context.Context, id uuid.UUID) (*domain.ReportRequest, error) {
	// 1. Intentar cache
	if s.cache != nil {
		var r domain.ReportRequest
		if ok, _ := s.cache.Get(ctx, domain.CacheKeyByID(id), &r); ok {
			return &r, nil
		}
	}

	// 2. Ir al repo con reintentos
	var report *domain.ReportRequest
	err := utils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var err error
		report, err = s.repo.GetByID(ctx, id)
		if errors.Is(err, domain.ErrReportNotFound) {
			return nil // miss definitivo, no reintentar
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, domain.ErrReportNotFound
	}

	// 3. Actualizar cache en background sin bloquear la respuesta
	s.cacheSetBackground(report)

	return report, nil
}

// ExisteRelatorio comprueba la existencia sin cargar la entidad.
func (s *ReportService) ExisteRelatorio(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// ProcessarRelatorio ejecuta el trabajo de generación y transiciona la
// solicitud a Completado. Una solicitud inexistente es un no-op: una
// redelivery tardía no debe tumbar al consumidor.
func (s *ReportService) ProcessarRelatorio(ctx context.Context, id uuid.UUID, nome string) error {
	report, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrReportNotFound) {
		s.log.Warn("Relatório não encontrado", zap.String("report_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}

	if report.Concluido() {
		s.log.Info("Evento duplicado ignorado: solicitud ya concluida",
			zap.String("report_id", id.String()),
			zap.String("status", string(report.Status)),
		)
		return nil
	}

	report.Status = domain.StatusProcessando
	report.Tentativas++

	// Trabajo sintético de generación del informe. Suspensión no bloqueante.
	select {
	case <-time.After(s.workDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	report.MarcarCompletado(time.Now().UTC())

	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "report",
		AggregateID:   report.ID.String(),
		EventType:     domain.ReportCompleted,
		Payload: sharedEvents.ReportProcessed{
			ID:                report.ID,
			Nome:              report.Nome,
			Status:            string(report.Status),
			DataProcessamento: report.DataProcessamento,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Update(ctx, report, evt); err != nil {
		return err
	}

	s.cacheSetBackground(report)
	s.analyticsLogBackground(report)

	s.log.Info("Relatório processado",
		zap.String("report_id", id.String()),
		zap.String("nome", nome),
	)

	return nil
}

// MarcarFalhado es la transición terminal cuando el consumidor agota su
// presupuesto de reintentos. La solicitud no vuelve a entregarse.
func (s *ReportService) MarcarFalhado(ctx context.Context, id uuid.UUID, motivo string) error {
	report, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrReportNotFound) {
		s.log.Warn("Relatório não encontrado", zap.String("report_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}

	if report.Concluido() {
		return nil
	}

	report.MarcarFalhado(motivo)

	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "report",
		AggregateID:   report.ID.String(),
		EventType:     domain.ReportFailed,
		Payload: sharedEvents.ReportProcessed{
			ID:     report.ID,
			Nome:   report.Nome,
			Status: string(report.Status),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Update(ctx, report, evt); err != nil {
		return err
	}

	s.cacheSetBackground(report)
	s.analyticsLogBackground(report)

	s.log.Warn("Relatório marcado como falhado",
		zap.String("report_id", id.String()),
		zap.String("motivo", motivo),
	)

	return nil
}

// ---------------- Helpers ----------------

func (s *ReportService) cacheSetBackground(r *domain.ReportRequest) {
	if s.cache == nil {
		return
	}
	go func(rep *domain.ReportRequest) {
		ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := s.cache.Set(ctxCache, domain.CacheKeyByID(rep.ID), rep, 60); err != nil {
			s.log.Warn("Cache update failed", zap.String("report_id", rep.ID.String()), zap.Error(err))
		}
	}(r)
}

func (s *ReportService) analyticsLogBackground(r *domain.ReportRequest) {
	if s.analytics == nil {
		return
	}
	go func(rep *domain.ReportRequest) {
		ctxLog, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.analytics.LogProcessed(ctxLog, []*domain.ReportRequest{rep}); err != nil {
			s.log.Warn("Analytics log failed", zap.String("report_id", rep.ID.String()), zap.Error(err))
		}
	}(r)
}
