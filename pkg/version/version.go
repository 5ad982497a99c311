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

// Package version carries build identity for the collector binary.
package version

import "fmt"

var (
	// Version is the collector version, overridden at build time via ldflags.
	Version = "0.0.4"
	// Commit is the source revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Long returns the full human-readable version string.
func Long() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
