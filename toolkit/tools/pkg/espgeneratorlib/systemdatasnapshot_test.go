// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/ptrutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemDataSnapshotRoundTrip(t *testing.T) {
	for _, name := range []string{"snapshot", "snapshot.cpio", "snapshot.cpio.gz", "snapshot.cpio.zst"} {
		t.Run(name, func(t *testing.T) {
			for _, scenario := range bootScenarios() {
				data := scenario.data(t)
				data.LoaderDevicePartUuid = ptrutils.PtrTo(scenario.esp.PartUuid)

				path := filepath.Join(t.TempDir(), name)
				err := SaveSystemData(path, data)
				require.NoError(t, err)

				loaded, err := LoadSystemData(path)
				require.NoError(t, err)
				assert.Equal(t, data, loaded, scenario.name)

				// A replayed snapshot reaches the same decision.
				assert.Equal(t,
					ResolveEspMount(context.Background(), data, defaultEnvironment()),
					ResolveEspMount(context.Background(), loaded, defaultEnvironment()),
					scenario.name)
			}
		})
	}
}

func TestLoadSystemDataMissingRootMount(t *testing.T) {
	snapshotDir := filepath.Join(t.TempDir(), "snapshot")
	require.NoError(t, os.MkdirAll(snapshotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snapshotDir, "mounts.json"), []byte("[]\n"), 0o644))

	_, err := LoadSystemData(snapshotDir)
	assert.ErrorIs(t, err, ErrSnapshotLoad)
	assert.ErrorIs(t, err, ErrRootMountNotFound)
}

func TestLoadSystemDataInvalidJson(t *testing.T) {
	snapshotDir := filepath.Join(t.TempDir(), "snapshot")
	require.NoError(t, os.MkdirAll(snapshotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snapshotDir, "state.json"), []byte("{"), 0o644))

	_, err := LoadSystemData(snapshotDir)
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}

func TestLoadSystemDataMissing(t *testing.T) {
	_, err := LoadSystemData(filepath.Join(t.TempDir(), "missing.cpio.zst"))
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}
