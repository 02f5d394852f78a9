package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/reportlab/internal/report/application"
	"github.com/davicafu/reportlab/internal/report/domain"
	"github.com/davicafu/reportlab/pkg/utils"
)

// ReportHandler encapsula los endpoints HTTP relacionados con ReportRequest
type ReportHandler struct {
	service *application.ReportService
}

// NewReportHandler crea un nuevo ReportHandler
func NewReportHandler(service *application.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// ---------------- Handlers ----------------

// SolicitarRelatorio endpoint POST /api/relatorios/solicitar/:nome
func (h *ReportHandler) SolicitarRelatorio(c *gin.Context) {
	nome := c.Param("nome")

	report, err := h.service.SolicitarRelatorio(c.Request.Context(), nome)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReport) {
			utils.SendBadRequest(c, "nome do relatório é obrigatório")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	c.Header("Location", "/api/relatorios/"+report.ID.String())
	c.JSON(http.StatusCreated, report)
}

// ObterRelatorio endpoint GET /api/relatorios/:id
func (h *ReportHandler) ObterRelatorio(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		utils.SendBadRequest(c, "invalid report id")
		return
	}

	report, err := h.service.ObterRelatorio(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrReportNotFound) {
			utils.SendNotFound(c, "report not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListarRelatorios endpoint GET /api/relatorios/
func (h *ReportHandler) ListarRelatorios(c *gin.Context) {
	reports, err := h.service.ListarRelatorios(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}

	if reports == nil {
		reports = []*domain.ReportRequest{}
	}
	c.JSON(http.StatusOK, reports)
}

// ListarPorStatus endpoint GET /api/relatorios/status/:status
func (h *ReportHandler) ListarPorStatus(c *gin.Context) {
	status, ok := domain.ParseStatus(c.Param("status"))
	if !ok {
		utils.SendBadRequest(c, "invalid status")
		return
	}

	reports, err := h.service.ListarPorStatus(c.Request.Context(), status)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}

	if reports == nil {
		reports = []*domain.ReportRequest{}
	}
	c.JSON(http.StatusOK, reports)
}
