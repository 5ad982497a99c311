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

// Package envinfo detects host facts consumed by the collection probes:
// the init system kind, the package manager family, and the EC2 instance
// identity. Detection runs once per collection and the resulting RunContext
// is immutable afterwards.
package envinfo

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// InitKind identifies the init system managing services on the node.
type InitKind int

const (
	InitUnknown InitKind = iota
	InitSystemd
	InitOther
)

// String returns the string representation of the InitKind.
func (k InitKind) String() string {
	switch k {
	case InitSystemd:
		return "systemd"
	case InitOther:
		return "other"
	default:
		return "unknown"
	}
}

// PkgKind identifies the package manager family installed on the node.
type PkgKind int

const (
	PkgUnknown PkgKind = iota
	PkgRpm
	PkgDeb
)

// String returns the string representation of the PkgKind.
func (k PkgKind) String() string {
	switch k {
	case PkgRpm:
		return "rpm"
	case PkgDeb:
		return "deb"
	default:
		return "unknown"
	}
}

const (
	// DefaultWorkRoot is the fixed working directory populated during a run
	// and deleted after a successful archive.
	DefaultWorkRoot = "/tmp/eks-log-collector"

	// DefaultArtifactDir is the fixed persistent directory the final
	// archive is written to.
	DefaultArtifactDir = "/var/log"

	// DefaultLogWindow bounds how far back journal queries reach.
	DefaultLogWindow = 7 * 24 * time.Hour

	// systemdMarker exists only on systemd-managed hosts.
	systemdMarker = "/run/systemd/system"
)

// RunContext holds the facts shared read-only by every probe in a run.
// It is created once by Detect and never mutated afterwards.
type RunContext struct {
	// RunID uniquely identifies this collection run in logs and reports.
	RunID string

	// InitKind is the detected init system.
	InitKind InitKind

	// PkgKind is the detected package manager family.
	PkgKind PkgKind

	// InstanceID is the EC2 instance identity, empty when unobtainable.
	InstanceID string

	// WorkRoot is the working directory the category tree lives under.
	WorkRoot string

	// ArtifactDir is where the final archive is written.
	ArtifactDir string

	// StartedAt is the run start timestamp.
	StartedAt time.Time

	// LogWindow bounds how far back log queries reach.
	LogWindow time.Duration
}

// Detector determines host facts. The zero value is not usable; construct
// with NewDetector. Lookup functions are injectable for testing.
type Detector struct {
	// LookPath resolves a binary on PATH. Defaults to exec.LookPath.
	LookPath func(name string) (string, error)

	// Stat checks filesystem presence. Defaults to os.Stat.
	Stat func(name string) (os.FileInfo, error)

	// IMDS queries the instance metadata service.
	IMDS *IMDSClient

	// WorkRoot and ArtifactDir override the fixed defaults, used by tests.
	WorkRoot    string
	ArtifactDir string
}

// NewDetector creates a Detector with production defaults.
func NewDetector() *Detector {
	return &Detector{
		LookPath:    exec.LookPath,
		Stat:        os.Stat,
		IMDS:        NewIMDSClient(),
		WorkRoot:    DefaultWorkRoot,
		ArtifactDir: DefaultArtifactDir,
	}
}

// Detect gathers host facts and returns the immutable RunContext.
// The three detections are independent and run concurrently. Failure to
// obtain the instance identity is not fatal; the id is left empty.
func (d *Detector) Detect(ctx context.Context) (*RunContext, error) {
	rc := &RunContext{
		RunID:       uuid.NewString(),
		WorkRoot:    d.WorkRoot,
		ArtifactDir: d.ArtifactDir,
		StartedAt:   time.Now(),
		LogWindow:   DefaultLogWindow,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rc.InitKind = d.detectInit()
		return nil
	})

	g.Go(func() error {
		rc.PkgKind = d.detectPkg()
		return nil
	})

	g.Go(func() error {
		id, err := d.IMDS.InstanceID(gctx)
		if err != nil {
			slog.Warn("unable to determine instance id", "error", err)
			return nil
		}
		rc.InstanceID = id
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("detected environment",
		"runID", rc.RunID,
		"init", rc.InitKind.String(),
		"packageManager", rc.PkgKind.String(),
		"instanceID", rc.InstanceID)

	return rc, nil
}

func (d *Detector) detectInit() InitKind {
	if _, err := d.Stat(systemdMarker); err == nil {
		return InitSystemd
	}
	if _, err := d.LookPath("initctl"); err == nil {
		return InitOther
	}
	return InitUnknown
}

// detectPkg probes known package-query tools in fixed priority order;
// the first match wins.
func (d *Detector) detectPkg() PkgKind {
	if _, err := d.LookPath("rpm"); err == nil {
		return PkgRpm
	}
	if _, err := d.LookPath("dpkg"); err == nil {
		return PkgDeb
	}
	return PkgUnknown
}
