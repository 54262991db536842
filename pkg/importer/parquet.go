package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
)

const parquetBatchSize = 128

// ReadParquet reads every row of a Parquet file. Leaf columns are keyed by
// their dotted path; repeated columns become lists.
func ReadParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	columns := pf.Schema().Columns()
	names := make([]string, len(columns))
	for i, path := range columns {
		names[i] = strings.Join(path, ".")
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]Row, 0, pf.NumRows())
	buf := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := reader.ReadRows(buf)
		for _, values := range buf[:n] {
			rows = append(rows, parquetRow(values, names))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

func parquetRow(values parquet.Row, names []string) Row {
	row := make(Row, len(names))
	for _, name := range names {
		row[name] = nil
	}
	for _, v := range values {
		col := v.Column()
		if col < 0 || col >= len(names) || v.IsNull() {
			continue
		}
		name := names[col]
		value := parquetValue(v)
		switch existing := row[name].(type) {
		case nil:
			row[name] = value
		case []any:
			row[name] = append(existing, value)
		default:
			row[name] = []any{existing, value}
		}
	}
	return row
}

func parquetValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}
