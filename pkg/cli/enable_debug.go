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
	"os"

	"github.com/awslabs/eks-log-collector/pkg/debug"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	apperrors "github.com/awslabs/eks-log-collector/pkg/errors"
)

// runEnableDebug toggles container runtime debug logging after operator
// confirmation. It mutates host state, so it keeps the same root
// requirement as collection but skips the disk and tool preflights.
func runEnableDebug(ctx context.Context) error {
	if os.Geteuid() != 0 {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "this program must be run as root")
	}

	rc, err := envinfo.NewDetector().Detect(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "environment detection failed", err)
	}

	return debug.NewToggler().Enable(ctx, rc)
}
