package contracts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/reportlab/internal/report/application"
	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	reportHTTP "github.com/davicafu/reportlab/internal/report/infra/inbound/http"
	"github.com/davicafu/reportlab/tests/mocks"
)

// reportHTTPResponse define el formato que esperamos en las respuestas JSON
type reportHTTPResponse struct {
	ID                string `json:"id"`
	Nome              string `json:"nome"`
	Status            string `json:"status"`
	DataCriacao       string `json:"data_criacao"`
	DataProcessamento string `json:"data_processamento,omitempty"`
	Observacoes       string `json:"observacoes,omitempty"`
	Tentativas        int    `json:"tentativas"`
	Version           int64  `json:"version"`
}

func newTestRouter(repo *mocks.InMemoryReportRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := application.NewReportService(repo, nil, nil, 0, zap.NewNop())
	router := gin.New()
	reportHTTP.RegisterReportRoutes(router, reportHTTP.NewReportHandler(service))
	return router
}

func TestSolicitarRelatorio_HTTPContract(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/relatorios/solicitar/Monthly%20Sales", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp reportHTTPResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Monthly Sales", resp.Nome)
	assert.Equal(t, string(reportDomain.StatusPendente), resp.Status)
	assert.Empty(t, resp.DataProcessamento)
	assert.Equal(t, "/api/relatorios/"+resp.ID, rec.Header().Get("Location"))

	// La solicitud quedó persistida junto con su evento de outbox
	assert.Len(t, repo.Reports, 1)
	assert.Len(t, repo.Outbox, 1)
	assert.Equal(t, reportDomain.ReportRequested, repo.Outbox[0].EventType)
}

func TestSolicitarRelatorio_NomeEnBlanco(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	router := newTestRouter(repo)

	// Un nombre de solo espacios pasa el router pero no la validación
	req := httptest.NewRequest(http.MethodPost, "/api/relatorios/solicitar/%20%20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.Reports)
	assert.Empty(t, repo.Outbox)
}

func TestObterRelatorio_HTTPContract(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	router := newTestRouter(repo)

	// Crear vía API para obtener un id real
	req := httptest.NewRequest(http.MethodPost, "/api/relatorios/solicitar/Inventory", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created reportHTTPResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Lectura del recurso creado
	req = httptest.NewRequest(http.MethodGet, "/api/relatorios/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp reportHTTPResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "Inventory", resp.Nome)
}

func TestObterRelatorio_NotFound(t *testing.T) {
	router := newTestRouter(mocks.NewInMemoryReportRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/relatorios/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObterRelatorio_IDInvalido(t *testing.T) {
	router := newTestRouter(mocks.NewInMemoryReportRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/relatorios/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListarRelatorios_HTTPContract(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	router := newTestRouter(repo)

	// Lista vacía: [] y no null
	req := httptest.NewRequest(http.MethodGet, "/api/relatorios/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())

	for _, nome := range []string{"A", "B"} {
		req = httptest.NewRequest(http.MethodPost, "/api/relatorios/solicitar/"+nome, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/relatorios/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var list []reportHTTPResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestListarPorStatus_HTTPContract(t *testing.T) {
	repo := mocks.NewInMemoryReportRepo()
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/relatorios/solicitar/Pendente1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/relatorios/status/Pendente", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []reportHTTPResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	// Estado fuera del ciclo de vida conocido
	req = httptest.NewRequest(http.MethodGet, "/api/relatorios/status/Desconhecido", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Estado válido sin solicitudes: lista vacía
	req = httptest.NewRequest(http.MethodGet, "/api/relatorios/status/Falhado", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}
