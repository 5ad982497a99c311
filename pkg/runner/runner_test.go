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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/awslabs/eks-log-collector/pkg/errors"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunContext(t *testing.T) *envinfo.RunContext {
	t.Helper()
	return &envinfo.RunContext{
		RunID:       "test-run",
		InitKind:    envinfo.InitSystemd,
		PkgKind:     envinfo.PkgRpm,
		InstanceID:  "i-0abc",
		WorkRoot:    filepath.Join(t.TempDir(), "work"),
		ArtifactDir: t.TempDir(),
		StartedAt:   time.Now(),
	}
}

func testRunner(reg *probe.Registry) *Runner {
	return &Runner{
		Registry:           reg,
		RequiredTools:      nil,
		SkipPrivilegeCheck: true,
		LookPath:           func(string) (string, error) { return "/usr/bin/true", nil },
		FreeBytes:          func(string) (uint64, error) { return 8 << 30, nil },
		Geteuid:            func() int { return 0 },
	}
}

func writeProbe(name, category string) probe.Probe {
	return probe.Probe{
		Name:     name,
		Category: category,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return os.WriteFile(filepath.Join(dir, name+".txt"), []byte("ok"), 0o644)
		},
	}
}

func TestRunCreatesCategoryTree(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, writeProbe("uname", probe.CategoryKernel))

	rc := testRunContext(t)
	_, err := testRunner(reg).Run(t.Context(), rc)
	require.NoError(t, err)

	for _, category := range probe.Categories() {
		info, err := os.Stat(filepath.Join(rc.WorkRoot, category))
		require.NoError(t, err, "category %s missing", category)
		assert.True(t, info.IsDir())
	}
}

func TestRunFaultIsolation(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, writeProbe("before", probe.CategoryKernel))
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "broken",
		Category: probe.CategorySystem,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return fmt.Errorf("no such log file")
		},
	})
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "panics",
		Category: probe.CategoryStorage,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			panic("nil map write")
		},
	})
	reg.MustRegister(probe.ModeCollect, writeProbe("after", probe.CategoryNetworking))

	rc := testRunContext(t)
	report, err := testRunner(reg).Run(t.Context(), rc)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	assert.Equal(t, probe.StatusSuccess, report.Results[0].Status)
	assert.Equal(t, probe.StatusFailed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Message, "no such log file")
	assert.Equal(t, probe.StatusFailed, report.Results[2].Status)
	assert.Contains(t, report.Results[2].Message, "panicked")
	// The probe after the failures still ran and wrote its artifact.
	assert.Equal(t, probe.StatusSuccess, report.Results[3].Status)
	assert.FileExists(t, filepath.Join(rc.WorkRoot, probe.CategoryNetworking, "after.txt"))
}

func TestRunProbeTimeout(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "hangs",
		Category: probe.CategoryDocker,
		Timeout:  50 * time.Millisecond,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	reg.MustRegister(probe.ModeCollect, writeProbe("after", probe.CategorySystem))

	report, err := testRunner(reg).Run(t.Context(), testRunContext(t))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, probe.StatusTimedOut, report.Results[0].Status)
	assert.Equal(t, probe.StatusSuccess, report.Results[1].Status)
}

func TestRunPartialResult(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "halfway",
		Category: probe.CategoryVarLog,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			if err := os.WriteFile(filepath.Join(dir, "first.log"), []byte("x"), 0o644); err != nil {
				return err
			}
			return probe.Partialf("copied 1 of 2 files")
		},
	})

	rc := testRunContext(t)
	report, err := testRunner(reg).Run(t.Context(), rc)
	require.NoError(t, err)

	assert.Equal(t, probe.StatusPartial, report.Results[0].Status)
	// Partial artifacts are kept in place.
	assert.FileExists(t, filepath.Join(rc.WorkRoot, probe.CategoryVarLog, "first.log"))
}

func TestRunVariantSkip(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "pkglist-deb",
		Category: probe.CategorySystem,
		Requires: &probe.Requirement{Pkg: []envinfo.PkgKind{envinfo.PkgDeb}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			t.Fatal("variant must not run on rpm host")
			return nil
		},
	})

	rc := testRunContext(t) // PkgRpm
	report, err := testRunner(reg).Run(t.Context(), rc)
	require.NoError(t, err)

	assert.Equal(t, probe.StatusSkipped, report.Results[0].Status)
	assert.NotEmpty(t, report.Results[0].Message)
}

func TestRunCapabilitySkip(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "needs-daemon",
		Category: probe.CategoryDocker,
		Supported: func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
			return false, "docker daemon not reachable"
		},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			t.Fatal("unsupported probe must not run")
			return nil
		},
	})

	report, err := testRunner(reg).Run(t.Context(), testRunContext(t))
	require.NoError(t, err)

	assert.Equal(t, probe.StatusSkipped, report.Results[0].Status)
	assert.Equal(t, "docker daemon not reachable", report.Results[0].Message)
}

func TestRunInsufficientDiskShortCircuits(t *testing.T) {
	executed := false
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "never",
		Category: probe.CategoryKernel,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			executed = true
			return nil
		},
	})

	r := testRunner(reg)
	r.FreeBytes = func(string) (uint64, error) { return 100 << 20, nil }

	rc := testRunContext(t)
	_, err := r.Run(t.Context(), rc)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePrecondition))
	assert.False(t, executed, "no probe may execute after a failed precondition")
	assert.NoDirExists(t, rc.WorkRoot, "no artifacts may be written")
}

func TestRunMissingToolShortCircuits(t *testing.T) {
	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, writeProbe("any", probe.CategoryKernel))

	r := testRunner(reg)
	r.RequiredTools = []string{"iptables"}
	r.LookPath = func(name string) (string, error) { return "", fmt.Errorf("not found") }

	_, err := r.Run(t.Context(), testRunContext(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePrecondition))
	assert.Contains(t, err.Error(), "iptables")
}

func TestRunNonRootRejected(t *testing.T) {
	reg := probe.NewRegistry()
	r := testRunner(reg)
	r.SkipPrivilegeCheck = false
	r.Geteuid = func() int { return 1000 }

	_, err := r.Run(t.Context(), testRunContext(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
}

func TestRunRegistrationOrder(t *testing.T) {
	reg := probe.NewRegistry()
	names := []string{"one", "two", "three"}
	for _, name := range names {
		reg.MustRegister(probe.ModeCollect, writeProbe(name, probe.CategorySystem))
	}

	report, err := testRunner(reg).Run(t.Context(), testRunContext(t))
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for i, name := range names {
		assert.Equal(t, name, report.Results[i].Probe)
	}
}

func TestRunInterruptStopsBetweenProbes(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	reg := probe.NewRegistry()
	reg.MustRegister(probe.ModeCollect, probe.Probe{
		Name:     "canceller",
		Category: probe.CategoryKernel,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			cancel()
			return nil
		},
	})
	reg.MustRegister(probe.ModeCollect, writeProbe("after", probe.CategorySystem))

	report, err := testRunner(reg).Run(ctx, testRunContext(t))
	require.NoError(t, err)

	// The second probe never ran; the report holds what completed.
	assert.Len(t, report.Results, 1)
}
