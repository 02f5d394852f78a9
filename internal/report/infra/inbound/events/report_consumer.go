package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedEvents "github.com/davicafu/reportlab/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/reportlab/internal/shared/infra/utils"
	"github.com/davicafu/reportlab/pkg/utils"
)

// ReportService es la porción del servicio que necesita el consumidor.
type ReportService interface {
	ProcessarRelatorio(ctx context.Context, id uuid.UUID, nome string) error
	MarcarFalhado(ctx context.Context, id uuid.UUID, motivo string) error
}

// ReportConsumer procesa los eventos de solicitud de informe. Cada mensaje
// tiene un presupuesto de reintentos; al agotarlo la solicitud pasa a
// Falhado en lugar de reentregarse para siempre.
type ReportConsumer struct {
	service     ReportService
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	log         *zap.Logger
}

func NewReportConsumer(service ReportService, maxAttempts int, backoff time.Duration, timeout time.Duration, logger *zap.Logger) *ReportConsumer {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &ReportConsumer{
		service:     service,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		timeout:     timeout,
		log:         logger,
	}
}

func (c *ReportConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case reportDomain.ReportRequested:
		sharedUtils.UnmarshalAndHandle[sharedEvents.ReportRequested](c.log, base.Data, func(evt sharedEvents.ReportRequested) {
			c.processWithRetry(ctx, evt)
		})

	case reportDomain.ReportCompleted, reportDomain.ReportFailed:
		// Eventos informativos de fin de procesamiento, sin acción aquí.
		sharedUtils.UnmarshalAndHandle[sharedEvents.ReportProcessed](c.log, base.Data, func(evt sharedEvents.ReportProcessed) {
			c.log.Info("Relatório concluído",
				zap.String("report_id", evt.ID.String()),
				zap.String("status", evt.Status),
			)
		})

	default:
		c.log.Warn("Unknown event type", zap.String("type", base.Type))
	}
}

func (c *ReportConsumer) processWithRetry(ctx context.Context, evt sharedEvents.ReportRequested) {
	c.log.Info("Processando relatório",
		zap.String("report_id", evt.ID.String()),
		zap.String("nome", evt.Nome),
	)

	err := utils.Retry(ctx, c.maxAttempts, c.backoff, func() error {
		ctxMsg, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.service.ProcessarRelatorio(ctxMsg, evt.ID, evt.Nome)
	})
	if err == nil {
		c.log.Info("Relatório processado com sucesso",
			zap.String("report_id", evt.ID.String()),
			zap.String("nome", evt.Nome),
		)
		return
	}

	c.log.Error("Erro ao processar relatório, presupuesto de reintentos agotado",
		zap.String("report_id", evt.ID.String()),
		zap.Int("attempts", c.maxAttempts),
		zap.Error(err),
	)

	ctxFail, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	motivo := fmt.Sprintf("Processamento falhou após %d tentativas: %v", c.maxAttempts, err)
	if err := c.service.MarcarFalhado(ctxFail, evt.ID, motivo); err != nil {
		c.log.Error("No se pudo marcar la solicitud como falhada",
			zap.String("report_id", evt.ID.String()),
			zap.Error(err),
		)
	}
}

// BackgroundConsumerChan conecta el consumidor a un canal del bus en memoria.
func BackgroundConsumerChan(ctx context.Context, ch <-chan interface{}, consumer *ReportConsumer) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				consumer.log.Info("ReportConsumer stopped")
				return
			case msg := <-ch:
				if payload, ok := msg.([]byte); ok {
					consumer.HandleMessage(ctx, "", payload)
				}
			}
		}
	}()
}
