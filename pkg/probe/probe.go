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

// Package probe defines the unit of diagnostic collection work and the
// report aggregating per-probe outcomes. A probe owns a single category
// directory, declares its own capability check and timeout, and never
// shares mutable state with other probes.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
)

// Category names partition collected artifacts by subsystem. Every probe
// writes into exactly one of these directories under the working root.
const (
	CategoryKernel     = "kernel"
	CategorySystem     = "system"
	CategoryDocker     = "docker"
	CategoryStorage    = "storage"
	CategoryVarLog     = "var_log"
	CategoryNetworking = "networking"
	CategoryIpamd      = "ipamd"
	CategorySysctls    = "sysctls"
	CategoryKubelet    = "kubelet"
	CategoryCNI        = "cni"
)

// Categories returns the fixed ordered set of category directories.
func Categories() []string {
	return []string{
		CategoryKernel,
		CategorySystem,
		CategoryDocker,
		CategoryStorage,
		CategoryVarLog,
		CategoryNetworking,
		CategoryIpamd,
		CategorySysctls,
		CategoryKubelet,
		CategoryCNI,
	}
}

// Status classifies the outcome of one probe execution.
type Status string

const (
	// StatusSuccess means the probe completed and wrote its artifacts.
	StatusSuccess Status = "success"
	// StatusPartial means some artifacts were written but a sub-step failed.
	StatusPartial Status = "partial"
	// StatusSkipped means the capability predicate or environment
	// requirement was not satisfied; zero artifacts were written.
	StatusSkipped Status = "skipped"
	// StatusTimedOut means the probe exceeded its configured timeout.
	StatusTimedOut Status = "timed_out"
	// StatusFailed means the probe action returned an error.
	StatusFailed Status = "failed"
)

// Requirement restricts a probe variant to detected environment kinds.
// Empty slices match any environment.
type Requirement struct {
	Init []envinfo.InitKind
	Pkg  []envinfo.PkgKind
}

// Satisfied reports whether the run context matches the requirement,
// and a reason when it does not.
func (r *Requirement) Satisfied(rc *envinfo.RunContext) (bool, string) {
	if r == nil {
		return true, ""
	}
	if len(r.Init) > 0 && !contains(r.Init, rc.InitKind) {
		return false, fmt.Sprintf("requires init system %s, detected %s", kindNames(r.Init), rc.InitKind)
	}
	if len(r.Pkg) > 0 && !contains(r.Pkg, rc.PkgKind) {
		return false, fmt.Sprintf("requires package manager %s, detected %s", kindNames(r.Pkg), rc.PkgKind)
	}
	return true, ""
}

func contains[T comparable](kinds []T, k T) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func kindNames[T fmt.Stringer](kinds []T) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return strings.Join(names, "|")
}

// Probe is a single named unit of diagnostic collection. Probes are
// constructed at registry build time, executed exactly once per run, and
// never mutated after construction.
type Probe struct {
	// Name uniquely identifies the probe within a registry.
	Name string

	// Category is the directory the probe writes artifacts into.
	Category string

	// Timeout bounds the probe's wall-clock execution; zero means run
	// to completion.
	Timeout time.Duration

	// Requires restricts the probe to detected environment variants.
	// An unmatched requirement yields a skip, never an error.
	Requires *Requirement

	// Supported is the capability predicate evaluated before Run.
	// Nil means always supported. The returned string explains a false
	// result in the run report.
	Supported func(ctx context.Context, rc *envinfo.RunContext) (bool, string)

	// Run performs the collection, writing artifacts into dir (the
	// probe's category directory). Errors are captured per probe and
	// never abort the remaining probes.
	Run func(ctx context.Context, rc *envinfo.RunContext, dir string) error
}

// Result is the recorded outcome of one probe execution.
type Result struct {
	Probe    string        `json:"probe" yaml:"probe"`
	Category string        `json:"category" yaml:"category"`
	Status   Status        `json:"status" yaml:"status"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Report is the ordered record of every probe's outcome for one run,
// in registration order. It is used for display only, never persisted
// into the bundle.
type Report struct {
	RunID      string    `json:"runId" yaml:"runId"`
	InstanceID string    `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	Results    []Result  `json:"results" yaml:"results"`
}

// Append records a probe outcome in execution order.
func (r *Report) Append(res Result) {
	r.Results = append(r.Results, res)
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 5)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// partialError marks a probe failure where some artifacts were still
// written. The runner records it as StatusPartial instead of StatusFailed.
type partialError struct {
	msg string
}

func (e *partialError) Error() string {
	return e.msg
}

// Partialf returns an error recorded as a partial result: the probe wrote
// some artifacts but one of its sub-steps failed.
func Partialf(format string, args ...any) error {
	return &partialError{msg: fmt.Sprintf(format, args...)}
}

// IsPartial reports whether err marks a partial probe outcome.
func IsPartial(err error) bool {
	_, ok := err.(*partialError)
	return ok
}
