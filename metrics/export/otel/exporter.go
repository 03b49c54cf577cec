package otel

import (
	"context"
	"errors"
	"fmt"

	goFlag "github.com/MrEthical07/goFlag"
	"github.com/MrEthical07/goFlag/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is the engine surface the exporter observes. *goFlag.Engine
// implements it.
type MetricsSource interface {
	MetricsSnapshot() goFlag.MetricsSnapshot
	AuditDropped() uint64
	AuditDroppedByType() map[string]uint64
	StorageBackend() string
}

type counterInstrument struct {
	id  goFlag.MetricID
	ins metric.Int64ObservableCounter
}

type latencyInstrument struct {
	id      goFlag.MetricID
	buckets []metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter observes engine metrics through one meter callback.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterInstrument
	latencies    []latencyInstrument
	auditDropped metric.Int64ObservableCounter
	droppedByTyp metric.Int64ObservableCounter
	backend      metric.Int64ObservableGauge
}

func NewOTelExporter(meter metric.Meter, engine *goFlag.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments for every engine metric
// plus the audit drop and storage backend families.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Defs {
		switch def.Kind {
		case internaldefs.KindCounter:
			ins, err := meter.Int64ObservableCounter(def.Name,
				metric.WithDescription(def.Help), metric.WithUnit(def.Unit))
			if err != nil {
				return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
			}
			e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
			observables = append(observables, ins)
		case internaldefs.KindHistogram:
			l, obs, err := newLatencyInstrument(meter, def)
			if err != nil {
				return nil, err
			}
			e.latencies = append(e.latencies, l)
			observables = append(observables, obs...)
		}
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp), metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.droppedByTyp, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedByTypeName,
		metric.WithDescription(internaldefs.AuditDroppedByTypeHelp), metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedByTypeName, err)
	}
	e.backend, err = meter.Int64ObservableGauge(internaldefs.StorageBackendName,
		metric.WithDescription(internaldefs.StorageBackendHelp))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", internaldefs.StorageBackendName, err)
	}
	observables = append(observables, e.auditDropped, e.droppedByTyp, e.backend)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newLatencyInstrument(meter metric.Meter, def internaldefs.Def) (latencyInstrument, []metric.Observable, error) {
	l := latencyInstrument{id: def.ID}
	obs := make([]metric.Observable, 0, internaldefs.BucketCount()+1)
	for i := 0; i < internaldefs.BucketCount(); i++ {
		name := def.Name + "_bucket_le_" + internaldefs.BucketSuffix(i)
		ins, err := meter.Int64ObservableGauge(name,
			metric.WithDescription("Cumulative count of "+def.Name+" samples at or below "+internaldefs.BucketLabel(i)+def.Unit+"."))
		if err != nil {
			return l, nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		l.buckets = append(l.buckets, ins)
		obs = append(obs, ins)
	}
	countName := def.Name + "_count"
	count, err := meter.Int64ObservableGauge(countName,
		metric.WithDescription("Total "+def.Name+" samples."))
	if err != nil {
		return l, nil, fmt.Errorf("create gauge %s: %w", countName, err)
	}
	l.count = count
	return l, append(obs, count), nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snapshot.Counters[c.id]))
	}
	for _, l := range e.latencies {
		raw, ok := snapshot.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		for i, ins := range l.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	byType := e.source.AuditDroppedByType()
	for _, eventType := range internaldefs.SortedKeys(byType) {
		o.ObserveInt64(e.droppedByTyp, int64(byType[eventType]),
			metric.WithAttributes(attribute.String(internaldefs.EventTypeLabel, eventType)))
	}
	if backend := e.source.StorageBackend(); backend != "" {
		o.ObserveInt64(e.backend, 1,
			metric.WithAttributes(attribute.String(internaldefs.StorageBackendLabel, backend)))
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
