/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package csvparser implements the CsvParser (§4.1): dialect detection and
// per-row fault-tolerant parsing of FlySight flight-logger CSV files into a
// raw session.Session, plus the file-system discovery helpers that replace
// the original tool's folder-picker walk.
package csvparser

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/flysight/flysight-core/log"
	"github.com/flysight/flysight-core/session"
)

var (
	ErrUnknownFormat  = errors.New("csvparser: unknown file format")
	ErrEmptyFile      = errors.New("csvparser: empty file")
	ErrUnreadableFile = errors.New("csvparser: unreadable file")
)

// Parse parses a raw FlySight CSV byte sequence into a Session. sourcePath
// is used only for the FLYSIGHT.TXT device-id lookup and the _DESCRIPTION
// path heuristic; pass "" when no path is meaningful (e.g. data received
// over a network rather than read from disk).
func Parse(data []byte, sourcePath string, lgr *log.Logger) (*session.Session, error) {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	clean, err := stripBOM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	s := session.New(lgr)
	firstLine := firstLineOf(clean)

	kvl := log.NewLoggerWithKV(lgr, log.KV("source", sourcePath))

	var deviceIDKey string
	switch {
	case strings.HasPrefix(firstLine, "time"):
		parseV1(clean, s, kvl)
		deviceIDKey = "Processor serial number"
	case strings.HasPrefix(firstLine, "$FLYS"):
		parseV2(clean, s, kvl)
		deviceIDKey = "Device_ID"
	default:
		return nil, ErrUnknownFormat
	}

	enrich(s, data, sourcePath, deviceIDKey, kvl)
	return s, nil
}

// ParseFile reads path (transparently gunzipping a .gz/.csv.gz suffix) and
// parses it with Parse.
func ParseFile(path string, lgr *log.Logger) (*session.Session, error) {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		lgr.Warn("csvparser: failed to read session file", log.KV("path", path), log.KVErr(err))
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		if raw, err = gunzip(raw); err != nil {
			lgr.Warn("csvparser: failed to decompress session file", log.KV("path", path), log.KVErr(err))
			return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		}
	}
	return Parse(raw, path, lgr)
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// DiscoverSessionFiles returns every *.csv, *.CSV, or *.csv.gz path under
// root, sorted, recursing into subdirectories. It supplements the original
// tool's QDirIterator-based folder walk (see §4.1 Supplement).
func DiscoverSessionFiles(root string) ([]string, error) {
	patterns := []string{"**/*.csv", "**/*.CSV", "**/*.csv.gz"}
	fsys := os.DirFS(root)

	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			return nil, fmt.Errorf("csvparser: glob %s: %w", pat, err)
		}
		for _, m := range matches {
			full := filepath.Join(root, m)
			if _, dup := seen[full]; dup {
				continue
			}
			seen[full] = struct{}{}
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out, nil
}

// stripBOM removes a leading UTF-8 byte-order mark, if present, leaving
// everything else untouched.
func stripBOM(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func firstLineOf(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return strings.TrimSpace(string(data[:i]))
	}
	return strings.TrimSpace(string(data))
}

func splitCSVLine(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r"), ",")
}

// parseRowFields parses one CSV record's fields into floats. An empty
// field, or any field that fails to parse (as either a trailing-Z ISO-8601
// instant or a plain float), fails the whole row.
func parseRowFields(fields []string) ([]float64, bool) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f == "" {
			return nil, false
		}
		if strings.HasSuffix(f, "Z") {
			t, err := time.Parse(time.RFC3339Nano, f)
			if err != nil {
				return nil, false
			}
			out[i] = float64(t.UnixMilli()) / 1000.0
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// sensorBuilder accumulates column-ordered row data for one or more
// sensors during a parse pass, appending into growable slices rather than
// rewriting each sensor's full column set on every row.
type sensorBuilder struct {
	order map[string][]string
	data  map[string]map[string][]float64
}

func newSensorBuilder() *sensorBuilder {
	return &sensorBuilder{
		order: make(map[string][]string),
		data:  make(map[string]map[string][]float64),
	}
}

func (b *sensorBuilder) declare(sensor string, cols []string) {
	b.order[sensor] = cols
	cm := make(map[string][]float64, len(cols))
	for _, c := range cols {
		cm[c] = nil
	}
	b.data[sensor] = cm
}

func (b *sensorBuilder) columns(sensor string) []string { return b.order[sensor] }

func (b *sensorBuilder) appendRow(sensor string, values []float64) {
	cols := b.order[sensor]
	cm := b.data[sensor]
	for i, c := range cols {
		cm[c] = append(cm[c], values[i])
	}
}

func (b *sensorBuilder) commit(s *session.Session) {
	for sensor, cm := range b.data {
		for col, vals := range cm {
			if len(vals) == 0 {
				continue
			}
			s.SetRawMeasurement(sensor, col, vals)
		}
	}
}

// parseV1 parses the flat-header dialect: a column-name line, a discarded
// units line, then one CSV record per sample, all for the implicit GNSS
// sensor.
func parseV1(data []byte, s *session.Session, kvl *log.KVLogger) {
	b := newSensorBuilder()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return
	}
	cols := splitCSVLine(scanner.Text())
	b.declare(session.GNSS, cols)

	if !scanner.Scan() {
		b.commit(s)
		return // units line absent; no data follows
	}

	row := 0
	for scanner.Scan() {
		row++
		fields := splitCSVLine(scanner.Text())
		if len(fields) != len(cols) {
			kvl.Debug("csvparser: row field count mismatch", log.KV("row", row), log.KV("want", len(cols)), log.KV("got", len(fields)))
			continue
		}
		values, ok := parseRowFields(fields)
		if !ok {
			kvl.Debug("csvparser: unparseable field, row skipped", log.KV("row", row))
			continue
		}
		b.appendRow(session.GNSS, values)
	}
	b.commit(s)
}

// parseV2 parses the directive-based dialect: a header section of
// $VAR/$COL/$UNIT lines terminated by $DATA, followed by $<sensor>-prefixed
// data records.
func parseV2(data []byte, s *session.Session, kvl *log.KVLogger) {
	b := newSensorBuilder()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	inData := false
	row := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if !inData {
			if line == "$DATA" {
				inData = true
				continue
			}
			parseV2HeaderLine(line, s, b)
			continue
		}

		row++
		fields := strings.Split(line, ",")
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "$") {
			kvl.Debug("csvparser: row missing sensor prefix, skipped", log.KV("row", row))
			continue
		}
		sensor := fields[0][1:]
		cols := b.columns(sensor)
		if len(cols) == 0 {
			kvl.Debug("csvparser: sensor has no $COL declaration, row ignored", log.KV("row", row), log.KV("sensor", sensor))
			continue
		}
		dataFields := fields[1:]
		if len(dataFields) != len(cols) {
			kvl.Debug("csvparser: row field count mismatch", log.KV("row", row), log.KV("sensor", sensor), log.KV("want", len(cols)), log.KV("got", len(dataFields)))
			continue
		}
		values, ok := parseRowFields(dataFields)
		if !ok {
			kvl.Debug("csvparser: unparseable field, row skipped", log.KV("row", row), log.KV("sensor", sensor))
			continue
		}
		b.appendRow(sensor, values)
	}
	b.commit(s)
}

func parseV2HeaderLine(line string, s *session.Session, b *sensorBuilder) {
	fields := strings.Split(line, ",")
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "$VAR":
		if len(fields) >= 3 {
			s.SetRawAttribute(fields[1], session.Text(fields[2]))
		}
	case "$COL":
		if len(fields) >= 2 {
			b.declare(fields[1], fields[2:])
		}
	case "$UNIT":
		// ignored
	}
}

// enrich fills in SESSION_ID, DEVICE_ID and _DESCRIPTION when the parsed
// data did not already supply them, and always sets _VISIBLE (§4.1
// Post-parse enrichment).
func enrich(s *session.Session, rawData []byte, sourcePath, deviceIDKey string, kvl *log.KVLogger) {
	if _, ok := s.RawAttribute(session.SessionID); !ok {
		sum := md5.Sum(rawData)
		s.SetRawAttribute(session.SessionID, session.Text(hex.EncodeToString(sum[:])))
	}

	if _, ok := s.RawAttribute(session.DeviceID); !ok && sourcePath != "" {
		if id, ok := lookupDeviceID(sourcePath, deviceIDKey); ok {
			s.SetRawAttribute(session.DeviceID, session.Text(id))
		} else {
			kvl.Info("csvparser: FLYSIGHT.TXT not found, DEVICE_ID left unset", log.KV("deviceIDKey", deviceIDKey))
		}
	}

	if _, ok := s.RawAttribute(session.Description); !ok {
		desc := sourcePath
		if desc == "" {
			desc = s.ID()
		}
		s.SetRawAttribute(session.Description, session.Text(computeDescription(desc)))
	}

	// _VISIBLE is an opaque boolean flag to the core (§3); represented as
	// a nonzero Number since AttributeValue has no dedicated bool kind.
	s.SetRawAttribute(session.Visible, session.Number(1))
}

func lookupDeviceID(sourcePath, expectedKey string) (string, bool) {
	root, ok := findFlySightRoot(sourcePath)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(root, "FLYSIGHT.TXT"))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key == expectedKey {
			return value, true
		}
	}
	return "", false
}

func findFlySightRoot(filePath string) (string, bool) {
	dir := filepath.Dir(filePath)
	for {
		if _, err := os.Stat(filepath.Join(dir, "FLYSIGHT.TXT")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

var timePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{2}$`)

func computeDescription(filePath string) string {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	dir := filepath.Dir(filePath)

	var description string
	if timePattern.MatchString(base) {
		description = base
	}

	parentName := filepath.Base(dir)
	for timePattern.MatchString(parentName) {
		if description != "" {
			description = "/" + description
		}
		description = parentName + description
		dir = filepath.Dir(dir)
		parentName = filepath.Base(dir)
	}

	if description == "" {
		description = filepath.Base(filePath)
	}
	return description
}
