/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package csvparser

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/flysight/flysight-core/session"
)

func TestParseV1(t *testing.T) {
	body := "time,lat,lon,hMSL\n" +
		"(s),(deg),(deg),(m)\n" +
		"2024-01-01T00:00:00.000Z,45.0,-73.0,1000.0\n" +
		"2024-01-01T00:00:01.000Z,45.0001,-73.0001,990.0\n"

	s, err := Parse([]byte(body), "/data/sessions/00-00-00.csv", nil)
	if err != nil {
		t.Fatal(err)
	}

	tm, ok := s.RawMeasurement(session.GNSS, "time")
	if !ok {
		t.Fatal("missing GNSS.time")
	}
	if tm[0] != 1704067200.0 || tm[1] != 1704067201.0 {
		t.Fatalf("bad time column: %v", tm)
	}

	hmsl, ok := s.RawMeasurement(session.GNSS, "hMSL")
	if !ok {
		t.Fatal("missing GNSS.hMSL")
	}
	if hmsl[0] != 1000.0 || hmsl[1] != 990.0 {
		t.Fatalf("bad hMSL column: %v", hmsl)
	}

	sum := md5.Sum([]byte(body))
	want := hex.EncodeToString(sum[:])
	if id, _ := s.RawAttribute(session.SessionID); id.Str != want {
		t.Fatalf("SESSION_ID = %q, want %q", id.Str, want)
	}

	if desc, _ := s.RawAttribute(session.Description); desc.Str != "00-00-00" {
		t.Fatalf("_DESCRIPTION = %q, want 00-00-00", desc.Str)
	}

	if v, _ := s.RawAttribute(session.Visible); v.Num == 0 {
		t.Fatal("_VISIBLE not set")
	}
}

func TestParseV1SkipsBadRows(t *testing.T) {
	body := "time,lat,lon,hMSL\n" +
		"(s),(deg),(deg),(m)\n" +
		"1.0,45.0,-73.0,1000.0\n" +
		"2.0,45.0,-73.0\n" + // wrong field count
		"3.0,,-73.0,1000.0\n" + // empty field
		"4.0,45.0,-73.0,abc\n" + // unparseable
		"5.0,45.1,-73.1,990.0\n"

	s, err := Parse([]byte(body), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	tm, ok := s.RawMeasurement(session.GNSS, "time")
	if !ok {
		t.Fatal("missing GNSS.time")
	}
	if len(tm) != 2 || tm[0] != 1.0 || tm[1] != 5.0 {
		t.Fatalf("expected only the two valid rows, got %v", tm)
	}
}

func TestParseV2(t *testing.T) {
	body := "$FLYS,1\n" +
		"$VAR,FIRMWARE_VER,v2.3\n" +
		"$COL,GNSS,time,lat,lon,hMSL\n" +
		"$COL,BARO,time,pressure\n" +
		"$UNIT,GNSS,time,s,lat,deg,lon,deg,hMSL,m\n" +
		"$DATA\n" +
		"$GNSS,1.0,45.0,-73.0,1000.0\n" +
		"$BARO,1.0,101325.0\n" +
		"$GNSS,2.0,45.0001,-73.0001,990.0\n" +
		"$UNKNOWN,1.0,2.0\n"

	s, err := Parse([]byte(body), "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := s.RawAttribute("FIRMWARE_VER"); v.Str != "v2.3" {
		t.Fatalf("bad $VAR attribute: %v", v)
	}

	gt, ok := s.RawMeasurement(session.GNSS, "time")
	if !ok || len(gt) != 2 || gt[0] != 1.0 || gt[1] != 2.0 {
		t.Fatalf("bad GNSS.time: %v", gt)
	}
	bp, ok := s.RawMeasurement(session.BARO, "pressure")
	if !ok || len(bp) != 1 || bp[0] != 101325.0 {
		t.Fatalf("bad BARO.pressure: %v", bp)
	}
}

func TestParseEmptyFile(t *testing.T) {
	if _, err := Parse(nil, "", nil); err != ErrEmptyFile {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestParseUnknownFormat(t *testing.T) {
	if _, err := Parse([]byte("garbage\n1,2,3\n"), "", nil); err != ErrUnknownFormat {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestParseFilePlainCSV(t *testing.T) {
	dir := t.TempDir()
	// A plain, uncompressed file: exercises ParseFile's read path end to end.
	path := filepath.Join(dir, "00-00-01.csv")
	body := "time,lat,lon,hMSL\n(s),(deg),(deg),(m)\n1.0,45.0,-73.0,1000.0\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := ParseFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := s.RawAttribute(session.SessionID); id.Str == "" {
		t.Fatal("expected SESSION_ID to be set")
	}
}

func TestDeviceIDFromFlysightTxt(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2024-01-01", "00-00-00.csv")
	if err := os.MkdirAll(filepath.Dir(sub), 0755); err != nil {
		t.Fatal(err)
	}
	flysightTxt := "; comment line\nProcessor serial number: ABCD-1234\n"
	if err := os.WriteFile(filepath.Join(dir, "FLYSIGHT.TXT"), []byte(flysightTxt), 0644); err != nil {
		t.Fatal(err)
	}
	body := "time,lat,lon,hMSL\n(s),(deg),(deg),(m)\n1.0,45.0,-73.0,1000.0\n"
	if err := os.WriteFile(sub, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := ParseFile(sub, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dev, ok := s.RawAttribute(session.DeviceID); !ok || dev.Str != "ABCD-1234" {
		t.Fatalf("bad DEVICE_ID: %v (ok=%v)", dev, ok)
	}
}

func TestDiscoverSessionFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "sub", "b.CSV"),
		filepath.Join(dir, "sub", "deep", "c.csv.gz"),
		filepath.Join(dir, "ignored.txt"),
	}
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	found, err := DiscoverSessionFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 matches, got %d: %v", len(found), found)
	}
}
