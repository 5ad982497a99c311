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
	"fmt"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// cniConfigProbe copies the CNI configuration directory. Skipped when the
// directory does not exist, common on nodes still bootstrapping.
func cniConfigProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:     "cni-config",
		Category: probe.CategoryCNI,
		Supported: func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
			if !dirExists(deps.CNIConfDir) {
				return false, fmt.Sprintf("no CNI configuration at %s", deps.CNIConfDir)
			}
			return true, ""
		},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return copyTree(deps.CNIConfDir, dir)
		},
	}
}
