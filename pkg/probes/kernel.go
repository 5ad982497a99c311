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
	"bytes"
	"context"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"golang.org/x/sys/unix"
)

// kernelProbe captures the kernel identity and ring buffer.
func kernelProbe() probe.Probe {
	return probe.Probe{
		Name:     "kernel",
		Category: probe.CategoryKernel,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			var uts unix.Utsname
			if err := unix.Uname(&uts); err == nil {
				line := bytes.Join([][]byte{
					unameField(uts.Sysname[:]),
					unameField(uts.Nodename[:]),
					unameField(uts.Release[:]),
					unameField(uts.Version[:]),
					unameField(uts.Machine[:]),
				}, []byte(" "))
				if err := writeFile(dir, "uname.txt", append(line, '\n')); err != nil {
					return err
				}
			}

			if err := cmdexec.RunToFile(ctx, filepath.Join(dir, "dmesg.txt"), "dmesg"); err != nil {
				return probe.Partialf("kernel ring buffer unavailable: %v", err)
			}
			return nil
		},
	}
}

// unameField trims the NUL padding of a utsname field.
func unameField(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
