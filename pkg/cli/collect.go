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

package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/awslabs/eks-log-collector/pkg/archive"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	apperrors "github.com/awslabs/eks-log-collector/pkg/errors"
	"github.com/awslabs/eks-log-collector/pkg/oci"
	"github.com/awslabs/eks-log-collector/pkg/probes"
	"github.com/awslabs/eks-log-collector/pkg/runner"
	"github.com/awslabs/eks-log-collector/pkg/serializer"
	"github.com/awslabs/eks-log-collector/pkg/version"
)

// runCollect performs the full collection flow: detect the environment,
// execute the probe sequence, archive the working tree, then emit the run
// report and optionally publish the bundle.
func runCollect(ctx context.Context) error {
	rc, err := envinfo.NewDetector().Detect(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "environment detection failed", err)
	}
	rc.LogWindow = logWindow

	slog.Info("environment detected",
		"runID", rc.RunID,
		"init", rc.InitKind.String(),
		"packageManager", rc.PkgKind.String(),
		"instanceID", rc.InstanceID)

	report, err := runner.New(probes.BuildRegistry(probes.DefaultDeps())).Run(ctx, rc)
	if err != nil {
		return err
	}

	// An interrupt ends the run with the report so far; the working tree is
	// left in place for manual salvage and no archive is produced.
	if ctx.Err() != nil {
		if err := writeReport(context.Background(), report); err != nil {
			return err
		}
		return apperrors.Wrap(apperrors.ErrCodeInternal, "collection interrupted before archiving", ctx.Err())
	}

	bundle, err := archive.Pack(rc.WorkRoot, rc.ArtifactDir, rc.InstanceID, version.Version, time.Now())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to archive collected artifacts", err)
	}

	// The working tree is removed only after the archive landed; a failed
	// pack leaves it behind for manual salvage.
	if err := runner.RemoveTree(rc.WorkRoot); err != nil {
		slog.Warn("failed to remove working tree", "path", rc.WorkRoot, "error", err)
	}

	slog.Info("bundle written", "path", bundle)

	if err := writeReport(ctx, report); err != nil {
		return err
	}

	if publish != "" {
		return publishBundle(ctx, bundle)
	}
	return nil
}

// writeReport serializes the run report to --report (or stdout) in the
// requested format.
func writeReport(ctx context.Context, report any) error {
	w := serializer.NewFileWriterOrStdout(serializer.Format(format), reportPath)
	defer func() { _ = w.Close() }()

	if err := w.Serialize(ctx, report); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to write run report", err)
	}
	return nil
}

// publishBundle pushes the archive to the registry named by --publish,
// defaulting the tag to the collector version.
func publishBundle(ctx context.Context, bundle string) error {
	ref, err := oci.ParseReference(publish)
	if err != nil {
		return err
	}
	if ref.Tag == "" {
		ref = ref.WithTag(version.Version)
	}

	result, err := oci.Push(ctx, oci.PushOptions{
		ArchivePath: bundle,
		Reference:   ref,
		Version:     version.Version,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to publish bundle", err)
	}

	slog.Info("bundle published", "reference", result.Reference, "digest", result.Digest)
	return nil
}
