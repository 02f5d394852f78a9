package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedEvents "github.com/davicafu/reportlab/internal/shared/domain/events"
)

// fakeReportService registra llamadas y permite simular fallos transitorios.
type fakeReportService struct {
	mu             sync.Mutex
	processCalls   int
	failFirstN     int
	failedID       uuid.UUID
	failedMotivo   string
	marcadoFalhado bool
}

func (f *fakeReportService) ProcessarRelatorio(ctx context.Context, id uuid.UUID, nome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.processCalls <= f.failFirstN {
		return errors.New("fallo transitorio")
	}
	return nil
}

func (f *fakeReportService) MarcarFalhado(ctx context.Context, id uuid.UUID, motivo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marcadoFalhado = true
	f.failedID = id
	f.failedMotivo = motivo
	return nil
}

func requestedPayload(t *testing.T, id uuid.UUID, nome string) []byte {
	t.Helper()
	data, err := json.Marshal(sharedEvents.ReportRequested{ID: id, Nome: nome})
	assert.NoError(t, err)
	envelope, err := json.Marshal(sharedEvents.IntegrationEvent{
		Type:      reportDomain.ReportRequested,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	assert.NoError(t, err)
	return envelope
}

func TestHandleMessage_Procesa(t *testing.T) {
	service := &fakeReportService{}
	consumer := NewReportConsumer(service, 3, time.Millisecond, time.Second, zap.NewNop())

	id := uuid.New()
	consumer.HandleMessage(context.Background(), id.String(), requestedPayload(t, id, "Monthly Sales"))

	assert.Equal(t, 1, service.processCalls)
	assert.False(t, service.marcadoFalhado)
}

func TestHandleMessage_ReintentaFalloTransitorio(t *testing.T) {
	service := &fakeReportService{failFirstN: 2}
	consumer := NewReportConsumer(service, 3, time.Millisecond, time.Second, zap.NewNop())

	id := uuid.New()
	consumer.HandleMessage(context.Background(), id.String(), requestedPayload(t, id, "Flaky"))

	// Dos fallos y un tercer intento con éxito dentro del presupuesto
	assert.Equal(t, 3, service.processCalls)
	assert.False(t, service.marcadoFalhado)
}

func TestHandleMessage_AgotaReintentos_MarcaFalhado(t *testing.T) {
	service := &fakeReportService{failFirstN: 100}
	consumer := NewReportConsumer(service, 3, time.Millisecond, time.Second, zap.NewNop())

	id := uuid.New()
	consumer.HandleMessage(context.Background(), id.String(), requestedPayload(t, id, "Doomed"))

	assert.Equal(t, 3, service.processCalls)
	assert.True(t, service.marcadoFalhado)
	assert.Equal(t, id, service.failedID)
	assert.Contains(t, service.failedMotivo, "Processamento falhou após 3 tentativas")
}

func TestHandleMessage_EventoCompletadoNoReprocesa(t *testing.T) {
	service := &fakeReportService{}
	consumer := NewReportConsumer(service, 3, time.Millisecond, time.Second, zap.NewNop())

	data, _ := json.Marshal(sharedEvents.ReportProcessed{
		ID:     uuid.New(),
		Nome:   "Done",
		Status: string(reportDomain.StatusCompletado),
	})
	envelope, _ := json.Marshal(sharedEvents.IntegrationEvent{
		Type:      reportDomain.ReportCompleted,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})

	consumer.HandleMessage(context.Background(), "", envelope)

	assert.Equal(t, 0, service.processCalls)
}

func TestHandleMessage_PayloadCorrupto(t *testing.T) {
	service := &fakeReportService{}
	consumer := NewReportConsumer(service, 3, time.Millisecond, time.Second, zap.NewNop())

	consumer.HandleMessage(context.Background(), "", []byte("{not json"))

	assert.Equal(t, 0, service.processCalls)
	assert.False(t, service.marcadoFalhado)
}
