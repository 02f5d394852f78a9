package domain

import (
	"time"

	sharedBus "github.com/davicafu/reportlab/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
)

// ReportStatus es el estado del ciclo de vida de una solicitud.
type ReportStatus string

const (
	StatusPendente    ReportStatus = "Pendente"
	StatusProcessando ReportStatus = "Processando"
	StatusCompletado  ReportStatus = "Completado"
	StatusFalhado     ReportStatus = "Falhado"
)

// ObservacaoSucesso es el texto que se guarda al completar el procesamiento.
const ObservacaoSucesso = "Processamento concluído com sucesso"

const (
	MaxNomeLen        = 200
	MaxObservacoesLen = 500
)

// ReportRequest representa una solicitud de informe persistida.
type ReportRequest struct {
	ID                uuid.UUID    `json:"id"`
	Nome              string       `json:"nome"`
	Status            ReportStatus `json:"status"`
	DataCriacao       time.Time    `json:"data_criacao"`
	DataProcessamento *time.Time   `json:"data_processamento,omitempty"`
	Observacoes       string       `json:"observacoes,omitempty"`
	Tentativas        int          `json:"tentativas"`
	Version           int64        `json:"version"`
}

func (r *ReportRequest) PartitionKey() string {
	return r.ID.String()
}

// Concluido indica si la solicitud llegó a un estado terminal.
func (r *ReportRequest) Concluido() bool {
	return r.Status == StatusCompletado || r.Status == StatusFalhado
}

// MarcarCompletado aplica la transición Pendente/Processando -> Completado.
// DataProcessamento se fija exactamente una vez.
func (r *ReportRequest) MarcarCompletado(agora time.Time) {
	r.Status = StatusCompletado
	r.DataProcessamento = &agora
	r.Observacoes = ObservacaoSucesso
}

// MarcarFalhado aplica la transición terminal de fallo con el motivo.
func (r *ReportRequest) MarcarFalhado(motivo string) {
	if len(motivo) > MaxObservacoesLen {
		motivo = motivo[:MaxObservacoesLen]
	}
	r.Status = StatusFalhado
	r.Observacoes = motivo
}

// ParseStatus valida un estado recibido desde fuera (ej. path param HTTP).
func ParseStatus(s string) (ReportStatus, bool) {
	switch ReportStatus(s) {
	case StatusPendente, StatusProcessando, StatusCompletado, StatusFalhado:
		return ReportStatus(s), true
	}
	return "", false
}

// Verificación estática para asegurar que ReportRequest implementa la interfaz
var _ sharedBus.Keyer = (*ReportRequest)(nil)
