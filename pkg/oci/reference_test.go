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

package oci

import (
	"context"
	"testing"

	apperrors "github.com/awslabs/eks-log-collector/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		want    Reference
		wantErr bool
	}{
		{
			name:   "full reference",
			target: "oci://ghcr.io/acme/node-logs:v1",
			want:   Reference{Registry: "ghcr.io", Repository: "acme/node-logs", Tag: "v1"},
		},
		{
			name:   "no tag",
			target: "oci://localhost:5000/logs",
			want:   Reference{Registry: "localhost:5000", Repository: "logs"},
		},
		{
			name:    "missing scheme",
			target:  "ghcr.io/acme/node-logs:v1",
			wantErr: true,
		},
		{
			name:    "invalid reference",
			target:  "oci://ghcr.io/UPPER CASE",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseReference(tc.target)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestReferenceString(t *testing.T) {
	t.Parallel()

	ref := &Reference{Registry: "ghcr.io", Repository: "acme/node-logs"}
	assert.Equal(t, "oci://ghcr.io/acme/node-logs", ref.String())
	assert.Equal(t, "ghcr.io/acme/node-logs", ref.ImageReference())

	tagged := ref.WithTag("0.0.4")
	assert.Equal(t, "oci://ghcr.io/acme/node-logs:0.0.4", tagged.String())
	assert.Equal(t, "ghcr.io/acme/node-logs:0.0.4", tagged.ImageReference())
	assert.Empty(t, ref.Tag, "WithTag must not mutate the receiver")
}

func TestPushRequiresTag(t *testing.T) {
	t.Parallel()

	_, err := Push(context.Background(), PushOptions{
		ArchivePath: "/tmp/bundle.tar.gz",
		Reference:   &Reference{Registry: "ghcr.io", Repository: "acme/node-logs"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagged registry reference")
}
