package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logpkg "vexdb/internal/log"
	region "vexdb/internal/region"
)

// RegionMetrics exposes per-region control-plane diagnostics. Regions are
// registered on CREATE and removed on DELETE.
type RegionMetrics struct {
	mu         sync.Mutex
	registered map[uint64]struct{}

	state        *prometheus.GaugeVec
	epochVersion *prometheus.GaugeVec
	appliedIndex *prometheus.GaugeVec
	commandTotal *prometheus.CounterVec
}

// NewRegionMetrics creates the registry-backed collectors (default registry
// if reg is nil).
func NewRegionMetrics(reg prometheus.Registerer, namespace string) *RegionMetrics {
	if namespace == "" {
		namespace = "vexdb"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	builder := promauto.With(reg)
	return &RegionMetrics{
		registered: make(map[uint64]struct{}),
		state: builder.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_state",
			Help:      "Lifecycle state of the region as an enum value.",
		}, []string{"region"}),
		epochVersion: builder.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_epoch_version",
			Help:      "Epoch version of the region.",
		}, []string{"region"}),
		appliedIndex: builder.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_applied_index",
			Help:      "Latest applied raft index of the region.",
		}, []string{"region"}),
		commandTotal: builder.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_command_total",
			Help:      "Region control commands executed, by type and outcome.",
		}, []string{"type", "status"}),
	}
}

func regionLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// AddRegion registers the region's series; idempotent.
func (m *RegionMetrics) AddRegion(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[id]; ok {
		return
	}
	m.registered[id] = struct{}{}
	m.state.WithLabelValues(regionLabel(id)).Set(0)
	m.epochVersion.WithLabelValues(regionLabel(id)).Set(0)
	m.appliedIndex.WithLabelValues(regionLabel(id)).Set(0)
}

// RemoveRegion drops the region's series; absent regions are a no-op.
func (m *RegionMetrics) RemoveRegion(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[id]; !ok {
		return
	}
	delete(m.registered, id)
	label := regionLabel(id)
	m.state.DeleteLabelValues(label)
	m.epochVersion.DeleteLabelValues(label)
	m.appliedIndex.DeleteLabelValues(label)
}

// ObserveRegion updates the region's state and epoch gauges.
func (m *RegionMetrics) ObserveRegion(r *region.Region) {
	if r == nil {
		return
	}
	label := regionLabel(r.ID())
	m.state.WithLabelValues(label).Set(float64(r.State))
	m.epochVersion.WithLabelValues(label).Set(float64(r.Epoch().Version))
}

// ObserveApplied records raft apply progress for the region.
func (m *RegionMetrics) ObserveApplied(regionID uint64, index uint64) {
	m.appliedIndex.WithLabelValues(regionLabel(regionID)).Set(float64(index))
}

// IncCommand counts a finished control command.
func (m *RegionMetrics) IncCommand(cmdType, status string) {
	m.commandTotal.WithLabelValues(cmdType, status).Inc()
}

// StartServer serves /metrics on addr until the context is canceled.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return fmt.Errorf("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	log := logpkg.New("metrics")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server error: %v", err)
		}
	}()

	return nil
}
