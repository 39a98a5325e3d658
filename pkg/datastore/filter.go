package datastore

import (
	"bytes"
	"encoding/json"
	"maps"
)

// matches reports whether every param equals the row's field. Values are
// compared on their JSON encodings so int64 params match float64 fields
// decoded from storage.
func matches(row Row, params map[string]any) bool {
	for field, want := range params {
		got, ok := row[field]
		if !ok {
			return false
		}

		if !jsonEqual(got, want) {
			return false
		}
	}

	return true
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}

	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}

	return bytes.Equal(ab, bb)
}

// paginate returns the requested page of rows.
func paginate(rows []Row, p Paginate) []Row {
	if p.Count <= 0 {
		return rows
	}

	page := p.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * p.Count
	if start >= len(rows) {
		return []Row{}
	}

	end := start + p.Count
	if end > len(rows) {
		end = len(rows)
	}

	return rows[start:end]
}

// merge returns a copy of row with data applied on top.
func merge(row Row, data map[string]any) Row {
	out := make(Row, len(row)+len(data))
	maps.Copy(out, row)
	maps.Copy(out, data)

	return out
}

// encodeRow marshals a row, normalising typed values (slices of structs,
// int64) into their JSON form.
func encodeRow(id string, data map[string]any) ([]byte, error) {
	row := make(map[string]any, len(data)+1)
	maps.Copy(row, data)
	row["id"] = id

	return json.Marshal(row)
}

func decodeRow(b []byte) (Row, error) {
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}

	return row, nil
}
