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

// Package runner orchestrates a collection run: fatal preflight checks,
// category tree setup, and the sequential probe loop with per-probe fault
// isolation. One probe's failure or timeout never aborts the run.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	apperrors "github.com/awslabs/eks-log-collector/pkg/errors"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"golang.org/x/sys/unix"
)

const (
	// minFreeBytes is the free-space floor on the working filesystem;
	// below it the run fails before any artifact is written.
	minFreeBytes = 1536 << 20 // 1.5 GiB

	// resultGrace is how long the runner waits for a timed-out probe's
	// goroutine to return after its context was canceled (and its
	// external processes killed) before moving on.
	resultGrace = 3 * time.Second
)

// defaultRequiredTools are the external binaries collection cannot do
// without; any one missing fails the run before a single probe executes.
var defaultRequiredTools = []string{"ps", "df", "mount", "ip", "iptables"}

// Runner executes the registered probes for a mode against the category
// tree. Probes run strictly sequentially in registration order.
type Runner struct {
	// Registry supplies the ordered probe list.
	Registry *probe.Registry

	// RequiredTools overrides the default fatal tool preflight list.
	RequiredTools []string

	// SkipPrivilegeCheck disables the euid check, used by tests.
	SkipPrivilegeCheck bool

	// LookPath, FreeBytes and Geteuid are injectable for testing.
	LookPath  func(name string) (string, error)
	FreeBytes func(path string) (uint64, error)
	Geteuid   func() int
}

// New creates a Runner with production defaults.
func New(registry *probe.Registry) *Runner {
	return &Runner{
		Registry:      registry,
		RequiredTools: defaultRequiredTools,
		LookPath:      exec.LookPath,
		FreeBytes:     freeBytes,
		Geteuid:       os.Geteuid,
	}
}

// Run executes the collect-mode probe sequence and returns the run report.
// Only the fatal preconditions return an error; individual probe failures
// are converted into report entries.
func (r *Runner) Run(ctx context.Context, rc *envinfo.RunContext) (*probe.Report, error) {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	if err := r.preflight(rc); err != nil {
		runTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := CreateTree(rc.WorkRoot); err != nil {
		runTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create category tree", err)
	}

	report := &probe.Report{
		RunID:      rc.RunID,
		InstanceID: rc.InstanceID,
		StartedAt:  rc.StartedAt,
	}

	for _, p := range r.Registry.ForMode(probe.ModeCollect) {
		// An operator interrupt stops the run between probes; the
		// in-flight probe was already cut off by its context.
		if ctx.Err() != nil {
			slog.Warn("run interrupted, stopping remaining probes", "error", ctx.Err())
			break
		}
		report.Append(r.runProbe(ctx, rc, p))
	}

	artifacts := CountArtifacts(rc.WorkRoot)
	artifactCount.Set(float64(artifacts))
	runTotal.WithLabelValues("success").Inc()

	slog.Info("collection complete",
		"runID", rc.RunID,
		"probes", len(report.Results),
		"artifacts", artifacts)

	return report, nil
}

// preflight verifies the three fatal preconditions: privilege, required
// tools, and free disk space. Collection is meaningless without them.
func (r *Runner) preflight(rc *envinfo.RunContext) error {
	if !r.SkipPrivilegeCheck && r.Geteuid() != 0 {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "this program must be run as root")
	}

	for _, tool := range r.RequiredTools {
		if _, err := r.LookPath(tool); err != nil {
			return apperrors.NewWithContext(apperrors.ErrCodePrecondition,
				fmt.Sprintf("required tool %q not found on PATH", tool),
				map[string]any{"tool": tool})
		}
	}

	free, err := r.FreeBytes(filepath.Dir(rc.WorkRoot))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to determine free disk space", err)
	}
	if free < minFreeBytes {
		return apperrors.NewWithContext(apperrors.ErrCodePrecondition,
			fmt.Sprintf("insufficient disk space: %d MB free, %d MB required", free>>20, uint64(minFreeBytes)>>20),
			map[string]any{"freeBytes": free, "requiredBytes": uint64(minFreeBytes)})
	}

	return nil
}

// runProbe executes a single probe with full fault isolation: requirement
// and capability gates, wall-clock timeout with process termination, and
// panic containment.
func (r *Runner) runProbe(ctx context.Context, rc *envinfo.RunContext, p probe.Probe) probe.Result {
	res := probe.Result{Probe: p.Name, Category: p.Category}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		probeDuration.WithLabelValues(p.Name).Observe(res.Elapsed.Seconds())
		probeTotal.WithLabelValues(string(res.Status)).Inc()
	}()

	if ok, reason := p.Requires.Satisfied(rc); !ok {
		slog.Warn("skipping probe, environment variant unmatched", "probe", p.Name, "reason", reason)
		res.Status = probe.StatusSkipped
		res.Message = reason
		return res
	}

	pctx := ctx
	cancel := context.CancelFunc(func() {})
	if p.Timeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, p.Timeout)
	}
	defer cancel()

	if p.Supported != nil {
		if ok, reason := p.Supported(pctx, rc); !ok {
			slog.Warn("skipping probe, capability unavailable", "probe", p.Name, "reason", reason)
			res.Status = probe.StatusSkipped
			res.Message = reason
			return res
		}
	}

	slog.Info("running probe", "probe", p.Name, "category", p.Category)

	dir := filepath.Join(rc.WorkRoot, p.Category)
	done := make(chan error, 1)
	go func() {
		done <- runIsolated(pctx, rc, p, dir)
	}()

	var err error
	select {
	case err = <-done:
	case <-pctx.Done():
		// The context kills the probe's external processes; give the
		// goroutine a moment to surface its error, then classify.
		select {
		case err = <-done:
		case <-time.After(resultGrace):
			err = pctx.Err()
		}
	}

	switch {
	case err == nil:
		res.Status = probe.StatusSuccess
	case probe.IsPartial(err):
		slog.Warn("probe completed partially", "probe", p.Name, "error", err)
		res.Status = probe.StatusPartial
		res.Message = err.Error()
	case stderrors.Is(err, context.DeadlineExceeded):
		slog.Warn("probe timed out", "probe", p.Name, "timeout", p.Timeout)
		res.Status = probe.StatusTimedOut
		res.Message = fmt.Sprintf("exceeded %s timeout", p.Timeout)
	default:
		slog.Warn("probe failed", "probe", p.Name, "error", err)
		res.Status = probe.StatusFailed
		res.Message = err.Error()
	}

	return res
}

// runIsolated invokes the probe action, converting a panic into an error
// so a defective probe cannot abort the remaining probes.
func runIsolated(ctx context.Context, rc *envinfo.RunContext, p probe.Probe, dir string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Run(ctx, rc, dir)
}

// freeBytes returns the bytes available to unprivileged users on the
// filesystem containing path.
func freeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
