// Package metrics keeps process counters and exposes them in the Prometheus
// text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

type family struct {
	name       string
	help       string
	typ        dto.MetricType
	labelNames []string
	series     map[string]*series
}

type series struct {
	labels []string
	value  float64
	count  uint64
}

// Registry holds counter and summary families. Families are declared once and
// series are created on first use.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
}

func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family)}
}

func (r *Registry) register(name, help string, typ dto.MetricType, labelNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.families[name]; exists {
		panic(fmt.Sprintf("metrics: %s registered twice", name))
	}
	r.families[name] = &family{name: name, help: help, typ: typ, labelNames: labelNames, series: make(map[string]*series)}
}

func (r *Registry) Counter(name, help string, labelNames ...string) {
	r.register(name, help, dto.MetricType_COUNTER, labelNames)
}

// Summary declares a family that tracks only count and sum.
func (r *Registry) Summary(name, help string, labelNames ...string) {
	r.register(name, help, dto.MetricType_SUMMARY, labelNames)
}

func (r *Registry) get(name string, labels []string) *series {
	f, ok := r.families[name]
	if !ok {
		panic(fmt.Sprintf("metrics: %s is not registered", name))
	}
	if len(labels) != len(f.labelNames) {
		panic(fmt.Sprintf("metrics: %s wants %d labels, got %d", name, len(f.labelNames), len(labels)))
	}
	key := strings.Join(labels, "\xff")
	s, ok := f.series[key]
	if !ok {
		s = &series{labels: append([]string(nil), labels...)}
		f.series[key] = s
	}
	return s
}

// Add increments a counter.
func (r *Registry) Add(name string, delta float64, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(name, labels).value += delta
}

// Observe records one sample in a summary.
func (r *Registry) Observe(name string, v float64, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(name, labels)
	s.value += v
	s.count++
}

// Gather snapshots every family, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		f := r.families[name]
		mf := &dto.MetricFamily{Name: ptr(f.name), Help: ptr(f.help), Type: ptr(f.typ)}

		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s := f.series[k]
			m := &dto.Metric{}
			for i, ln := range f.labelNames {
				m.Label = append(m.Label, &dto.LabelPair{Name: ptr(ln), Value: ptr(s.labels[i])})
			}
			switch f.typ {
			case dto.MetricType_COUNTER:
				m.Counter = &dto.Counter{Value: ptr(s.value)}
			case dto.MetricType_SUMMARY:
				m.Summary = &dto.Summary{SampleCount: ptr(s.count), SampleSum: ptr(s.value)}
			}
			mf.Metric = append(mf.Metric, m)
		}
		out = append(out, mf)
	}
	return out
}

// Handler serves the registry in the text exposition format.
func (r *Registry) Handler() http.HandlerFunc {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range r.Gather() {
			if err := enc.Encode(mf); err != nil {
				return
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }
