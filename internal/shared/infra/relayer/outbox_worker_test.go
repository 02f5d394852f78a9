package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/reportlab/internal/shared/domain/events"
	"github.com/davicafu/reportlab/tests/mocks"
)

func pendingRequestedEvent() sharedDomain.OutboxEvent {
	reportID := uuid.New()
	return sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "report",
		AggregateID:   reportID.String(),
		EventType:     reportDomain.ReportRequested,
		Payload: sharedEvents.ReportRequested{
			ID:   reportID,
			Nome: "Monthly Sales",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestProcessBatch_PublicaYMarca(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := pendingRequestedEvent()

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkOutboxProcessed", mock.Anything, evt.ID).Return(nil)

	worker := NewOutboxWorker(repo, publisher, reportDomain.NewEventRegistry(), time.Second, 10, zap.NewNop())
	worker.ProcessBatch(context.Background())

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)

	// Lo publicado debe ser el sobre de integración, no el payload desnudo
	published := publisher.Calls[0].Arguments.Get(1)
	envelope, ok := published.(sharedEvents.IntegrationEvent)
	assert.True(t, ok)
	assert.Equal(t, reportDomain.ReportRequested, envelope.Type)

	var payload sharedEvents.ReportRequested
	assert.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "Monthly Sales", payload.Nome)
}

func TestProcessBatch_PublishFalla_NoMarca(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := pendingRequestedEvent()

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	worker := NewOutboxWorker(repo, publisher, reportDomain.NewEventRegistry(), time.Second, 10, zap.NewNop())
	worker.ProcessBatch(context.Background())

	// El evento queda pendiente para el siguiente ciclo
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestProcessBatch_TipoDesconocido(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := pendingRequestedEvent()
	evt.EventType = "report.unknown"

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil)

	worker := NewOutboxWorker(repo, publisher, reportDomain.NewEventRegistry(), time.Second, 10, zap.NewNop())
	worker.ProcessBatch(context.Background())

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestProcessBatch_FetchFalla(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, errors.New("db down"))

	worker := NewOutboxWorker(repo, publisher, reportDomain.NewEventRegistry(), time.Second, 10, zap.NewNop())
	worker.ProcessBatch(context.Background())

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
