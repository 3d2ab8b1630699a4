package client

import (
	"sync"

	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/types"
)

// LoadingCoordinator shows the indicator while at least one request that
// asked for it is in progress. End on a zero count is a no-op.
type LoadingCoordinator struct {
	mu        sync.Mutex
	count     int
	indicator types.LoadingIndicator
	gauge     types.Gauge
}

func NewLoadingCoordinator(indicator types.LoadingIndicator, recorder types.MetricsManager) *LoadingCoordinator {
	lc := &LoadingCoordinator{indicator: indicator}
	if recorder != nil {
		lc.gauge = recorder.Gauge(metrics.LoadingActive, nil)
	}
	return lc
}

func (l *LoadingCoordinator) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	l.report()

	if l.count == 1 && l.indicator != nil {
		l.indicator.Show()
	}
}

func (l *LoadingCoordinator) End() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return
	}

	l.count--
	l.report()

	if l.count == 0 && l.indicator != nil {
		l.indicator.Hide()
	}
}

func (l *LoadingCoordinator) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *LoadingCoordinator) Visible() bool {
	return l.Count() > 0
}

func (l *LoadingCoordinator) report() {
	if l.gauge != nil {
		l.gauge.Set(float64(l.count))
	}
}
