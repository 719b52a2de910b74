/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

var tempDir string

func TestMain(m *testing.M) {
	var err error
	if tempDir, err = ioutil.TempDir(os.TempDir(), `config`); err != nil {
		fmt.Println("Failed to make tempdir", err)
		os.Exit(-1)
	}
	r := m.Run()
	if err = os.RemoveAll(tempDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create tempdir: %v\n", err)
		os.Exit(-1)
	}
	os.Exit(r)
}

type testImportGlobal struct {
	Ground_Reference_Mode string
	Fixed_Elevation       float64
	Log_Level             string
}

type testImportConfig struct {
	Global testImportGlobal
	Device map[string]*struct {
		Description string
		Serial      string
		Time_Zone   string
	}
}

var testConfig = []byte(`
[global]
Ground-Reference-Mode = fixed
Fixed-Elevation = 123.4
Log-Level=ERROR #options are OFF INFO WARN ERROR

[Device "flysight1"]
	Description="FlySight Gen2 #1"
	Serial=ABCD1234
	Time-Zone=UTC
`)

// TestFileLoad exercises LoadConfigFile end to end against a disk file,
// the path importconfig_test.go's byte-oriented tests don't cover.
func TestFileLoad(t *testing.T) {
	testFile := filepath.Join(tempDir, `test.cfg`)
	if err := ioutil.WriteFile(testFile, testConfig, 0660); err != nil {
		t.Fatal(err)
	}
	var tc testImportConfig
	if err := LoadConfigFile(&tc, testFile); err != nil {
		t.Fatal(err)
	}
	if tc.Global.Ground_Reference_Mode != `fixed` {
		t.Fatal("bad ground reference mode", tc.Global.Ground_Reference_Mode)
	} else if tc.Global.Fixed_Elevation != 123.4 {
		t.Fatal("bad fixed elevation", tc.Global.Fixed_Elevation)
	}
	if d, ok := tc.Device["flysight1"]; !ok || d == nil {
		t.Fatal("missing flysight1")
	} else if d.Description != `FlySight Gen2 #1` || d.Serial != `ABCD1234` || d.Time_Zone != `UTC` {
		t.Fatalf("Bad Device1: %+v\n", d)
	}
}

func TestFileTooLarge(t *testing.T) {
	testFile := filepath.Join(tempDir, `huge.cfg`)
	big := make([]byte, maxConfigSize+1)
	if err := ioutil.WriteFile(testFile, big, 0660); err != nil {
		t.Fatal(err)
	}
	var tc testImportConfig
	if err := LoadConfigFile(&tc, testFile); err != ErrConfigFileTooLarge {
		t.Fatalf("expected ErrConfigFileTooLarge, got %v", err)
	}
}
