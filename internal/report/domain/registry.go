package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/reportlab/internal/shared/domain/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	ReportRequested = "report.requested"
	ReportCompleted = "report.completed"
	ReportFailed    = "report.failed"
)

const ReportTopic = "report"

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		ReportRequested: {
			Type:  reflect.TypeOf(sharedEvents.ReportRequested{}),
			Topic: ReportTopic,
		},
		ReportCompleted: {
			Type:  reflect.TypeOf(sharedEvents.ReportProcessed{}),
			Topic: ReportTopic,
		},
		ReportFailed: {
			Type:  reflect.TypeOf(sharedEvents.ReportProcessed{}),
			Topic: ReportTopic,
		},
	}
}
