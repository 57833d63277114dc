// Package convert turns OpenSim motion (.mot) and marker (.trc) files into CSV.
package convert

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

const endHeader = "endheader"

// MOTToCSV converts an OpenSim storage file. The header block ends at the endheader
// line; the next line names the columns.
func MOTToCSV(data []byte) ([]byte, error) {
	lines, err := splitLines(data)
	if err != nil {
		return nil, err
	}

	start := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), endHeader) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, undeterminable("missing %s marker", endHeader)
	}
	lines = dropBlank(lines[start:])
	if len(lines) == 0 {
		return nil, undeterminable("no column header after %s", endHeader)
	}

	header := fields(lines[0])
	if len(header) == 0 {
		return nil, undeterminable("empty column header")
	}

	rows := make([][]string, 0, len(lines))
	rows = append(rows, header)
	for i, line := range lines[1:] {
		row := fields(line)
		if len(row) != len(header) {
			return nil, undeterminable("row %d has %d values for %d columns", i+1, len(row), len(header))
		}
		rows = append(rows, row)
	}
	return writeCSV(rows)
}

// TRCToCSV converts a marker trajectory file. Each marker expands into _X, _Y and _Z
// columns after Frame# and Time; frames with trailing markers missing are padded.
func TRCToCSV(data []byte) ([]byte, error) {
	lines, err := splitLines(data)
	if err != nil {
		return nil, err
	}

	nameRow := -1
	for i, line := range lines {
		cols := fields(line)
		if len(cols) >= 2 && strings.HasPrefix(cols[0], "Frame#") {
			nameRow = i
			break
		}
	}
	if nameRow < 0 {
		return nil, undeterminable("missing Frame# header row")
	}

	var markers []string
	for _, name := range fields(lines[nameRow])[2:] {
		if name != "" {
			markers = append(markers, name)
		}
	}
	if len(markers) == 0 {
		return nil, undeterminable("no marker names")
	}

	header := []string{"Frame#", "Time"}
	for _, m := range markers {
		header = append(header, m+"_X", m+"_Y", m+"_Z")
	}

	// The row after the marker names holds the X1 Y1 Z1 labels.
	body := lines[nameRow+1:]
	if len(body) > 0 && isAxisRow(body[0]) {
		body = body[1:]
	}
	body = dropBlank(body)

	rows := make([][]string, 0, len(body)+1)
	rows = append(rows, header)
	for i, line := range body {
		row := fields(line)
		if len(row) > len(header) {
			return nil, undeterminable("frame %d has %d values for %d columns", i+1, len(row), len(header))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return writeCSV(rows)
}

// ToCSV dispatches on the source format of a CSV result type.
func ToCSV(source domain.FileFormat, data []byte) ([]byte, error) {
	switch source {
	case domain.FormatMOT:
		return MOTToCSV(data)
	case domain.FormatTRC:
		return TRCToCSV(data)
	}
	return nil, &domain.ConversionError{Kind: domain.ConversionUndeterminableColumns, Detail: fmt.Sprintf("no converter for %s", source)}
}

func splitLines(data []byte) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.ConversionError{Kind: domain.ConversionEmptyFile}
	}
	if !utf8.Valid(data) {
		return nil, &domain.ConversionError{Kind: domain.ConversionBadEncoding, Detail: "not valid UTF-8"}
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64<<10), len(data)+1)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ConversionError{Kind: domain.ConversionBadEncoding, Detail: err.Error()}
	}
	return lines, nil
}

// fields splits on tabs when present so empty marker cells survive, otherwise on
// runs of whitespace.
func fields(line string) []string {
	if strings.Contains(line, "\t") {
		parts := strings.Split(line, "\t")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) > 0 && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		return parts
	}
	return strings.Fields(line)
}

func dropBlank(lines []string) []string {
	out := lines[:0:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func isAxisRow(line string) bool {
	cols := strings.Fields(line)
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if len(c) < 2 || !strings.ContainsRune("XYZxyz", rune(c[0])) {
			return false
		}
	}
	return true
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func undeterminable(format string, args ...any) error {
	return &domain.ConversionError{Kind: domain.ConversionUndeterminableColumns, Detail: fmt.Sprintf(format, args...)}
}
