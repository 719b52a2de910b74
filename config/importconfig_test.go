/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadImportSettingsBytes(t *testing.T) {
	raw := []byte(`
[global]
ground-reference-mode = "Fixed"
fixed-elevation = 123.4
log-level = "INFO"
`)

	s, err := LoadImportSettingsBytes(raw)
	require.NoError(t, err)
	require.Equal(t, "Fixed", s.Global.Ground_Reference_Mode)
	require.InDelta(t, 123.4, s.Global.Fixed_Elevation, 1e-9)
	require.Equal(t, "INFO", s.Global.Log_Level)
}

func TestLoadImportSettingsBytesDeviceOverride(t *testing.T) {
	raw := []byte(`
[global]
ground-reference-mode = "Automatic"
device-id-override = "ABCD-1234"
`)

	s, err := LoadImportSettingsBytes(raw)
	require.NoError(t, err)
	require.Equal(t, "Automatic", s.Global.Ground_Reference_Mode)
	require.Equal(t, "ABCD-1234", s.Global.Device_Id_Override)
}
