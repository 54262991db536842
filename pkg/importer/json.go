package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds one JSON lines document
const maxLineSize = 10 * 1024 * 1024

// ReadJSON reads a JSON array of objects. Numbers are kept as json.Number.
func ReadJSON(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array: %w", err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// ReadJSONL reads one JSON object per line, skipping blank lines
func ReadJSONL(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	rows := []Row{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}
	return rows, nil
}
