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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// CreateTree creates the working root and every category directory under
// it. Every directory referenced by a registered probe exists before any
// probe executes.
func CreateTree(root string) error {
	for _, category := range probe.Categories() {
		dir := filepath.Join(root, category)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create category directory %s: %w", dir, err)
		}
	}
	return nil
}

// RemoveTree deletes the working root. Called only after a successful
// archive in collect mode.
func RemoveTree(root string) error {
	return os.RemoveAll(root)
}

// CountArtifacts returns the number of regular files under root.
func CountArtifacts(root string) int {
	count := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}
