package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	"github.com/davicafu/reportlab/tests/mocks"
)

func newTestService(repo *mocks.InMemoryReportRepo) *ReportService {
	return NewReportService(repo, nil, nil, 0, zap.NewNop())
}

func TestSolicitarRelatorio(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	report, err := service.SolicitarRelatorio(context.Background(), "Monthly Sales")

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Equal(t, "Monthly Sales", report.Nome)
	assert.Equal(t, domain.StatusPendente, report.Status)
	assert.Nil(t, report.DataProcessamento)
	assert.Equal(t, int64(1), report.Version)

	// La solicitud y su evento quedan en el mismo repositorio
	assert.Len(t, repo.Reports, 1)
	assert.Len(t, repo.Outbox, 1)
	assert.Equal(t, domain.ReportRequested, repo.Outbox[0].EventType)
	assert.Equal(t, report.ID.String(), repo.Outbox[0].AggregateID)
	assert.False(t, repo.Outbox[0].Processed)
}

func TestSolicitarRelatorio_NomeInvalido(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	for _, nome := range []string{"", "   "} {
		_, err := service.SolicitarRelatorio(context.Background(), nome)
		assert.ErrorIs(t, err, domain.ErrInvalidReport)
	}

	// Nada persistido, nada en outbox
	assert.Empty(t, repo.Reports)
	assert.Empty(t, repo.Outbox)
}

func TestObterRelatorio(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	created, err := service.SolicitarRelatorio(context.Background(), "Inventory")
	assert.NoError(t, err)

	got, err := service.ObterRelatorio(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Inventory", got.Nome)
}

func TestObterRelatorio_NotFound(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	_, err := service.ObterRelatorio(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestObterRelatorio_CacheHit(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	cache := mocks.NewDummyCache()
	service := NewReportService(repo, cache, nil, 0, zap.NewNop())

	id := uuid.New()
	cache.SetForTest(domain.CacheKeyByID(id), &domain.ReportRequest{
		ID:     id,
		Nome:   "From Cache",
		Status: domain.StatusCompletado,
	})

	// El repo no conoce la solicitud; sólo puede venir de la cache
	got, err := service.ObterRelatorio(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, "From Cache", got.Nome)
}

func TestListarRelatorios_OrdenadosPorDataCriacao(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	base := time.Now().UTC()
	for i, nome := range []string{"A", "B", "C"} {
		rep := &domain.ReportRequest{
			ID:          uuid.New(),
			Nome:        nome,
			Status:      domain.StatusPendente,
			DataCriacao: base.Add(time.Duration(i) * time.Minute),
			Version:     1,
		}
		assert.NoError(t, repo.Create(context.Background(), rep, outboxEventForTest(rep.ID)))
	}

	list, err := service.ListarRelatorios(context.Background())
	assert.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, "C", list[0].Nome)
	assert.Equal(t, "B", list[1].Nome)
	assert.Equal(t, "A", list[2].Nome)
}

func TestListarPorStatus(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	r1, _ := service.SolicitarRelatorio(context.Background(), "Pendente 1")
	_, _ = service.SolicitarRelatorio(context.Background(), "Pendente 2")
	assert.NoError(t, service.ProcessarRelatorio(context.Background(), r1.ID, r1.Nome))

	pendentes, err := service.ListarPorStatus(context.Background(), domain.StatusPendente)
	assert.NoError(t, err)
	assert.Len(t, pendentes, 1)

	completados, err := service.ListarPorStatus(context.Background(), domain.StatusCompletado)
	assert.NoError(t, err)
	assert.Len(t, completados, 1)
	assert.Equal(t, r1.ID, completados[0].ID)
}

func TestExisteRelatorio(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	created, _ := service.SolicitarRelatorio(context.Background(), "Exists")

	ok, err := service.ExisteRelatorio(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = service.ExisteRelatorio(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessarRelatorio(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	created, _ := service.SolicitarRelatorio(context.Background(), "Quarterly")

	err := service.ProcessarRelatorio(context.Background(), created.ID, created.Nome)
	assert.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompletado, stored.Status)
	assert.NotNil(t, stored.DataProcessamento)
	assert.Equal(t, domain.ObservacaoSucesso, stored.Observacoes)
	assert.Equal(t, 1, stored.Tentativas)
	assert.Equal(t, int64(2), stored.Version)

	// Evento de solicitud + evento de completado
	assert.Len(t, repo.Outbox, 2)
	assert.Equal(t, domain.ReportCompleted, repo.Outbox[1].EventType)
}

func TestProcessarRelatorio_Idempotente(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	created, _ := service.SolicitarRelatorio(context.Background(), "Duplicated")

	assert.NoError(t, service.ProcessarRelatorio(context.Background(), created.ID, created.Nome))
	antes, _ := repo.GetByID(context.Background(), created.ID)

	// Una redelivery del mismo evento no debe tocar la solicitud
	assert.NoError(t, service.ProcessarRelatorio(context.Background(), created.ID, created.Nome))
	depois, _ := repo.GetByID(context.Background(), created.ID)

	assert.Equal(t, antes.Version, depois.Version)
	assert.Equal(t, antes.Tentativas, depois.Tentativas)
	assert.Equal(t, *antes.DataProcessamento, *depois.DataProcessamento)
	assert.Len(t, repo.Outbox, 2)
}

func TestProcessarRelatorio_Inexistente(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	// Una redelivery de una solicitud ya purgada no es un error
	err := service.ProcessarRelatorio(context.Background(), uuid.New(), "ghost")
	assert.NoError(t, err)
	assert.Empty(t, repo.Outbox)
}

func TestMarcarFalhado(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	analytics := &mocks.DummyAnalytics{}
	service := NewReportService(repo, nil, analytics, 0, zap.NewNop())

	created, _ := service.SolicitarRelatorio(context.Background(), "Doomed")

	err := service.MarcarFalhado(context.Background(), created.ID, "broker indisponível")
	assert.NoError(t, err)

	stored, _ := repo.GetByID(context.Background(), created.ID)
	assert.Equal(t, domain.StatusFalhado, stored.Status)
	assert.Equal(t, "broker indisponível", stored.Observacoes)
	assert.Nil(t, stored.DataProcessamento)

	assert.Len(t, repo.Outbox, 2)
	assert.Equal(t, domain.ReportFailed, repo.Outbox[1].EventType)

	// Un fallo posterior sobre un estado terminal es un no-op
	assert.NoError(t, service.MarcarFalhado(context.Background(), created.ID, "otra vez"))
	again, _ := repo.GetByID(context.Background(), created.ID)
	assert.Equal(t, "broker indisponível", again.Observacoes)
	assert.Len(t, repo.Outbox, 2)
}

func TestProcessarRelatorio_ErrorDePersistencia(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	service := newTestService(repo)

	created, _ := service.SolicitarRelatorio(context.Background(), "Flaky")

	repo.FailUpdate = domain.ErrVersionConflict
	err := service.ProcessarRelatorio(context.Background(), created.ID, created.Nome)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	// El estado persistido no cambió
	stored, _ := repo.GetByID(context.Background(), created.ID)
	assert.Equal(t, domain.StatusPendente, stored.Status)
}

func outboxEventForTest(aggregateID uuid.UUID) sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "report",
		AggregateID:   aggregateID.String(),
		EventType:     domain.ReportRequested,
		CreatedAt:     time.Now().UTC(),
	}
}
