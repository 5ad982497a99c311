// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eks_log_collector_run_duration_seconds",
			Help:    "Time taken for a complete collection run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	runTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eks_log_collector_run_total",
			Help: "Total number of collection run attempts",
		},
		[]string{"status"}, // success or error
	)

	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eks_log_collector_probe_duration_seconds",
			Help:    "Time taken by individual probes",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 75},
		},
		[]string{"probe"},
	)

	probeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eks_log_collector_probe_total",
			Help: "Probe executions by outcome",
		},
		[]string{"status"},
	)

	artifactCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eks_log_collector_artifacts",
			Help: "Number of artifacts captured by the last run",
		},
	)
)
