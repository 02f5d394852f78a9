package mocks

import (
	"context"
	"sort"
	"sync"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"
	"github.com/google/uuid"
)

// InMemoryReportRepo simula ReportRepository con outbox incluido.
type InMemoryReportRepo struct {
	Reports map[uuid.UUID]*reportDomain.ReportRequest
	Outbox  []sharedDomain.OutboxEvent
	mu      sync.Mutex

	// Errores inyectables para simular fallos de persistencia.
	// Con FailUpdateN > 0 el fallo de Update se agota tras N llamadas.
	FailGet     error
	FailUpdate  error
	FailUpdateN int
}

func NewInMemoryReportRepo() *InMemoryReportRepo {
	return &InMemoryReportRepo{
		Reports: make(map[uuid.UUID]*reportDomain.ReportRequest),
		Outbox:  []sharedDomain.OutboxEvent{},
	}
}

// Create con outbox
func (r *InMemoryReportRepo) Create(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Reports[rep.ID]; ok {
		return reportDomain.ErrReportAlreadyExists
	}
	copia := *rep
	r.Reports[rep.ID] = &copia
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*reportDomain.ReportRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailGet != nil {
		return nil, r.FailGet
	}
	rep, ok := r.Reports[id]
	if !ok {
		return nil, reportDomain.ErrReportNotFound
	}
	copia := *rep
	return &copia, nil
}

// Update con outbox y CAS sobre version
func (r *InMemoryReportRepo) Update(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		if r.FailUpdateN > 0 {
			r.FailUpdateN--
			err := r.FailUpdate
			if r.FailUpdateN == 0 {
				r.FailUpdate = nil
			}
			return err
		}
		return r.FailUpdate
	}
	actual, ok := r.Reports[rep.ID]
	if !ok {
		return reportDomain.ErrReportNotFound
	}
	if actual.Version != rep.Version {
		return reportDomain.ErrVersionConflict
	}
	copia := *rep
	copia.Version++
	r.Reports[rep.ID] = &copia
	r.Outbox = append(r.Outbox, evt)
	rep.Version++
	return nil
}

func (r *InMemoryReportRepo) List(ctx context.Context) ([]*reportDomain.ReportRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*reportDomain.ReportRequest, 0, len(r.Reports))
	for _, rep := range r.Reports {
		copia := *rep
		list = append(list, &copia)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].DataCriacao.After(list[j].DataCriacao)
	})
	return list, nil
}

func (r *InMemoryReportRepo) ListByStatus(ctx context.Context, status reportDomain.ReportStatus) ([]*reportDomain.ReportRequest, error) {
	all, _ := r.List(ctx)
	filtered := make([]*reportDomain.ReportRequest, 0, len(all))
	for _, rep := range all {
		if rep.Status == status {
			filtered = append(filtered, rep)
		}
	}
	return filtered, nil
}

func (r *InMemoryReportRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Reports[id]
	return ok, nil
}

// ------------------- Outbox -------------------

func (r *InMemoryReportRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.Outbox) {
		limit = len(r.Outbox)
	}
	pending := r.Outbox[:limit]
	return append([]sharedDomain.OutboxEvent(nil), pending...), nil
}

func (r *InMemoryReportRepo) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, evt := range r.Outbox {
		if evt.ID == id {
			// eliminar de outbox para simular que se procesó
			r.Outbox = append(r.Outbox[:i], r.Outbox[i+1:]...)
			return nil
		}
	}
	return reportDomain.ErrReportNotFound
}

// Verificación estática
var _ reportDomain.ReportRepository = (*InMemoryReportRepo)(nil)
