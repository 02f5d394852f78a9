package mocks

import (
	"context"
	"sync"
	"time"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
)

// DummyAnalytics registra las solicitudes que se le loguean.
type DummyAnalytics struct {
	mu     sync.Mutex
	Logged []*reportDomain.ReportRequest
}

func (a *DummyAnalytics) LogProcessed(ctx context.Context, reports []*reportDomain.ReportRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logged = append(a.Logged, reports...)
	return nil
}

func (a *DummyAnalytics) GetDailyTrend(ctx context.Context, start, end time.Time) ([]reportDomain.DailyReportTrend, error) {
	return nil, nil
}

func (a *DummyAnalytics) GetAverageProcessingTime(ctx context.Context, start, end time.Time) (time.Duration, error) {
	return 0, nil
}

// Verificación estática
var _ reportDomain.ReportAnalyticsRepository = (*DummyAnalytics)(nil)
