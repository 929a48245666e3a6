package supervisor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 接收 Supervisor 产生的指标事件，在状态迁移的路径上同步调用
type Collector interface {
	IncSpawn(kind Kind)
	MoveGrab(kind Kind, from, to Status)
	AddGrab(kind Kind, status Status, delta float64)
}

type noopCollector struct{}

// Noop 返回丢弃所有指标的收集器
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncSpawn(Kind) {}

func (noopCollector) MoveGrab(Kind, Status, Status) {}

func (noopCollector) AddGrab(Kind, Status, float64) {}

// PrometheusCollector 通过 Prometheus 暴露抓取指标
type PrometheusCollector struct {
	spawns *prometheus.CounterVec
	grabs  *prometheus.GaugeVec
}

// NewPrometheusCollector 在 reg 上注册指标，已注册过时复用已有的指标
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	spawns, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grabservice_supervisor_spawns_total",
		Help: "Number of grabber processes started per grabber kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	grabs, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grabservice_supervisor_grabs",
		Help: "Number of tracked grabs per grabber kind and status.",
	}, []string{"kind", "status"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{spawns: spawns, grabs: grabs}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// IncSpawn 记录一次进程启动
func (p *PrometheusCollector) IncSpawn(kind Kind) {
	if p == nil {
		return
	}
	p.spawns.WithLabelValues(string(kind)).Inc()
}

// MoveGrab 把一个抓取从 from 状态移到 to 状态
func (p *PrometheusCollector) MoveGrab(kind Kind, from, to Status) {
	if p == nil || from == to {
		return
	}
	p.grabs.WithLabelValues(string(kind), from.String()).Dec()
	p.grabs.WithLabelValues(string(kind), to.String()).Inc()
}

// AddGrab 增减某状态下的抓取数
func (p *PrometheusCollector) AddGrab(kind Kind, status Status, delta float64) {
	if p == nil {
		return
	}
	p.grabs.WithLabelValues(string(kind), status.String()).Add(delta)
}
