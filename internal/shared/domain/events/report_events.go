package events

import (
	"time"

	"github.com/google/uuid"
)

// Estos son contratos de integración, NO entidades del dominio.
// Se definen planos para intercambio entre contextos.
type ReportRequested struct {
	ID   uuid.UUID `json:"id"`
	Nome string    `json:"nome"`
}

// ReportProcessed se emite al terminar el procesamiento, con éxito o no.
type ReportProcessed struct {
	ID                uuid.UUID  `json:"id"`
	Nome              string     `json:"nome"`
	Status            string     `json:"status"`
	DataProcessamento *time.Time `json:"data_processamento,omitempty"`
}
