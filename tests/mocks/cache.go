package mocks

import (
	"context"
	"sync"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
)

// DummyCache simula una cache en memoria
type DummyCache struct {
	store map[string]*reportDomain.ReportRequest
	mu    sync.Mutex
}

// NewDummyCache crea un DummyCache inicializado
func NewDummyCache() *DummyCache {
	return &DummyCache{
		store: make(map[string]*reportDomain.ReportRequest),
	}
}

func (c *DummyCache) SetForTest(key string, rep *reportDomain.ReportRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]*reportDomain.ReportRequest)
	}
	c.store[key] = rep
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep, ok := c.store[key]
	if !ok {
		return false, nil
	}

	repPtr, ok := dest.(*reportDomain.ReportRequest)
	if !ok {
		return false, nil
	}

	*repPtr = *rep
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		c.store = make(map[string]*reportDomain.ReportRequest)
	}

	rep, ok := val.(*reportDomain.ReportRequest)
	if !ok {
		return nil
	}
	c.store[key] = rep
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.store, key)
	return nil
}

// Verificación estática
var _ reportDomain.ReportCache = (*DummyCache)(nil)
