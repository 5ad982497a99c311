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

package probes

import (
	"context"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// packagesRpmProbe lists installed packages on rpm-based hosts. The probe
// declares its package-manager requirement; on deb hosts it is recorded as
// skipped rather than failed.
func packagesRpmProbe() probe.Probe {
	return probe.Probe{
		Name:     "packages-rpm",
		Category: probe.CategorySystem,
		Requires: &probe.Requirement{Pkg: []envinfo.PkgKind{envinfo.PkgRpm}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return cmdexec.RunToFile(ctx, filepath.Join(dir, "rpm-packages.txt"), "rpm", "-qa")
		},
	}
}

// packagesDebProbe lists installed packages on deb-based hosts.
func packagesDebProbe() probe.Probe {
	return probe.Probe{
		Name:     "packages-deb",
		Category: probe.CategorySystem,
		Requires: &probe.Requirement{Pkg: []envinfo.PkgKind{envinfo.PkgDeb}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return cmdexec.RunToFile(ctx, filepath.Join(dir, "dpkg-packages.txt"), "dpkg", "-l")
		},
	}
}
