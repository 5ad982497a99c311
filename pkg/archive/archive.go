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

// Package archive serializes a populated category tree into a single
// compressed, deterministically named tarball. Paths stored in the archive
// are relative to the tree root so extraction never recreates the
// collector's absolute working path.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// namePrefix is the fixed leading component of every bundle name.
const namePrefix = "eks"

// timeLayout renders the bundle timestamp in UTC to the minute.
const timeLayout = "2006-01-02_1504"

// Name builds the deterministic bundle filename:
// eks_{instanceID}_{UTC yyyy-MM-dd_HHmm}_{version}.tar.gz.
// An empty instance id renders as "unknown".
func Name(instanceID, version string, now time.Time) string {
	if strings.TrimSpace(instanceID) == "" {
		instanceID = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s_%s.tar.gz",
		namePrefix, instanceID, now.UTC().Format(timeLayout), version)
}

// Pack writes every file under root into a gzip-compressed tarball in
// outDir and returns the archive path. Entry names are relative to root.
// The working tree is left intact; cleanup is the caller's decision and
// must only happen after Pack succeeds.
func Pack(root, outDir, instanceID, version string, now time.Time) (string, error) {
	target := filepath.Join(outDir, Name(instanceID, version, now))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", target, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		// Artifacts are plain files and directories; anything else
		// (sockets, symlinks left by a probe) is not portable.
		if !d.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build header for %s: %w", path, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to archive %s: %w", path, err)
		}
		return nil
	})

	if walkErr != nil {
		tw.Close()
		gz.Close()
		os.Remove(target)
		return "", walkErr
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	return target, nil
}
