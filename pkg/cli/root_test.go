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
	"io"
	"testing"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, string(probe.ModeCollect), rootCmd.Flags().Lookup("mode").DefValue)
	assert.Equal(t, "table", rootCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, envinfo.DefaultLogWindow.String(), rootCmd.Flags().Lookup("since").DefValue)
	assert.Empty(t, rootCmd.Flags().Lookup("publish").DefValue)
}

func TestUnknownModeFails(t *testing.T) {
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"--mode", "bogus"})

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized mode")
}
