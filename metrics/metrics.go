// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package metrics exposes ETL measurements as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/poiesic/mailrecall/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailrecall"

// ETL records pipeline runs. It satisfies etl.Metrics.
type ETL struct {
	jobs          *prometheus.CounterVec
	records       *prometheus.CounterVec
	indexFailures prometheus.Counter
	duration      *prometheus.HistogramVec
}

// NewETL registers the ETL collectors with reg. A nil reg uses the default
// registerer.
func NewETL(reg prometheus.Registerer) *ETL {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ETL{
		jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "etl",
				Name:      "jobs_total",
				Help:      "ETL jobs by terminal status",
			},
			[]string{"status"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "etl",
				Name:      "records_total",
				Help:      "Records seen at each pipeline stage",
			},
			[]string{"stage"},
		),
		indexFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "etl",
			Name:      "index_failures_total",
			Help:      "Runs whose search index load failed after records were stored",
		}),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "etl",
				Name:      "run_duration_seconds",
				Help:      "ETL run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"status"},
		),
	}
}

func (m *ETL) ObserveRun(status core.JobStatus, elapsed time.Duration) {
	m.jobs.WithLabelValues(string(status)).Inc()
	m.duration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (m *ETL) AddRecords(stage string, n int) {
	if n <= 0 {
		return
	}
	m.records.WithLabelValues(stage).Add(float64(n))
}

func (m *ETL) IncIndexFailure() {
	m.indexFailures.Inc()
}
