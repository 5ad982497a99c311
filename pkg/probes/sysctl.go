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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// sysctlProbe walks the kernel parameter tree and writes every readable
// parameter as one "key = value" line, sorted for stable diffing.
func sysctlProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:     "sysctl",
		Category: probe.CategorySysctls,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			params, unreadable, err := readSysctls(ctx, deps.SysctlRoot)
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, p := range params {
				b.WriteString(p)
				b.WriteByte('\n')
			}
			if err := writeFile(dir, "sysctls.txt", []byte(b.String())); err != nil {
				return err
			}

			if unreadable > 0 {
				return probe.Partialf("%d kernel parameters unreadable", unreadable)
			}
			return nil
		},
	}
}

// readSysctls collects "key = value" pairs under root. Write-only and
// transient entries (stable_secret and friends) surface as unreadable and
// are counted, not fatal.
func readSysctls(ctx context.Context, root string) ([]string, int, error) {
	var params []string
	unreadable := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			unreadable++
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			unreadable++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := strings.ReplaceAll(rel, string(filepath.Separator), ".")
		value := strings.TrimRight(string(data), "\n")
		params = append(params, fmt.Sprintf("%s = %s", key, value))
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(params)
	return params, unreadable, nil
}
