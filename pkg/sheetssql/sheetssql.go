// Package sheetssql treats a spreadsheet tab as an append-only table of tagged structs.
// Row 1 holds the column headers taken from `ssql_header` struct tags.
package sheetssql

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/jakechorley/shift-selector/pkg/core/addressing"
)

// SheetsClient defines the sheets operations a table needs
type SheetsClient interface {
	GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
	UpdateValues(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error
	AppendRows(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error
	EnsureSheet(ctx context.Context, spreadsheetID, sheetTitle string) (bool, error)
}

// Table is a tab holding rows of T
type Table[T any] struct {
	client        SheetsClient
	spreadsheetID string
	name          string
	headers       []string
}

// NewTable binds T to the named tab. T must be a struct with at least one ssql_header tag.
func NewTable[T any](client SheetsClient, spreadsheetID, name string) (*Table[T], error) {
	headers, err := Headers[T]()
	if err != nil {
		return nil, err
	}
	return &Table[T]{
		client:        client,
		spreadsheetID: spreadsheetID,
		name:          name,
		headers:       headers,
	}, nil
}

// Headers returns the ssql_header tags of T in field order
func Headers[T any]() ([]string, error) {
	var model T
	t := reflect.TypeOf(model)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %v", t)
	}

	var headers []string
	for i := 0; i < t.NumField(); i++ {
		if h := t.Field(i).Tag.Get("ssql_header"); h != "" {
			headers = append(headers, h)
		}
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("struct %s has no 'ssql_header' tags", t.Name())
	}
	return headers, nil
}

// Ensure creates the tab with its header row when it does not exist yet,
// and checks the header row of an existing tab
func (tb *Table[T]) Ensure(ctx context.Context) error {
	created, err := tb.client.EnsureSheet(ctx, tb.spreadsheetID, tb.name)
	if err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", tb.name, err)
	}

	if created {
		header := make([]interface{}, len(tb.headers))
		for i, h := range tb.headers {
			header[i] = h
		}
		if err := tb.client.UpdateValues(ctx, tb.spreadsheetID, addressing.SheetRange(tb.name, "A1"), [][]interface{}{header}); err != nil {
			return fmt.Errorf("failed to write header of table %s: %w", tb.name, err)
		}
		return nil
	}

	values, err := tb.client.GetValues(ctx, tb.spreadsheetID, addressing.SheetRange(tb.name, "1:1"))
	if err != nil {
		return fmt.Errorf("failed to read header of table %s: %w", tb.name, err)
	}
	if len(values) == 0 {
		return fmt.Errorf("table %s has no header row", tb.name)
	}

	existing := make(map[string]bool)
	for _, cell := range values[0] {
		if s, ok := cell.(string); ok {
			existing[s] = true
		}
	}
	for _, h := range tb.headers {
		if !existing[h] {
			return fmt.Errorf("table %s is missing column %q", tb.name, h)
		}
	}

	return nil
}

// Insert appends rows in header order
func (tb *Table[T]) Insert(ctx context.Context, models ...T) error {
	if len(models) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(models))
	for _, m := range models {
		v := reflect.ValueOf(m)
		t := v.Type()
		row := make([]interface{}, 0, len(tb.headers))
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).Tag.Get("ssql_header") == "" {
				continue
			}
			row = append(row, v.Field(i).Interface())
		}
		rows = append(rows, row)
	}

	if err := tb.client.AppendRows(ctx, tb.spreadsheetID, addressing.SheetRange(tb.name, ""), rows); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tb.name, err)
	}
	return nil
}

// Select reads every data row of the table, mapping columns to fields by header name
func (tb *Table[T]) Select(ctx context.Context) ([]T, error) {
	values, err := tb.client.GetValues(ctx, tb.spreadsheetID, addressing.SheetRange(tb.name, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", tb.name, err)
	}
	return Decode[T](values)
}

// Decode maps raw rows (header first) onto T
func Decode[T any](values [][]interface{}) ([]T, error) {
	if len(values) < 2 {
		return []T{}, nil
	}

	var model T
	t := reflect.TypeOf(model)

	columnIndexes := make(map[string]int)
	for i, header := range values[0] {
		if headerStr, ok := header.(string); ok {
			columnIndexes[headerStr] = i
		}
	}

	fieldMap := make(map[string]reflect.StructField)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if columnName := field.Tag.Get("ssql_header"); columnName != "" {
			fieldMap[columnName] = field
		}
	}

	results := make([]T, 0, len(values)-1)
	for rowIdx, row := range values[1:] {
		result := reflect.New(t).Elem()

		for columnName, colIdx := range columnIndexes {
			field, ok := fieldMap[columnName]
			if !ok || colIdx >= len(row) || row[colIdx] == nil {
				continue
			}

			if err := setFieldValue(result.FieldByName(field.Name), row[colIdx]); err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", rowIdx+2, columnName, err)
			}
		}

		results = append(results, result.Interface().(T))
	}

	return results, nil
}

// setFieldValue converts a sheet cell to the field's type
func setFieldValue(field reflect.Value, cellValue interface{}) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	cellStr, ok := cellValue.(string)
	if !ok {
		cellStr = fmt.Sprint(cellValue)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(cellStr)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if cellStr == "" {
			field.SetInt(0)
			return nil
		}
		intVal, err := strconv.ParseInt(cellStr, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse int: %w", err)
		}
		field.SetInt(intVal)

	case reflect.Bool:
		if cellStr == "" {
			field.SetBool(false)
			return nil
		}
		boolVal, err := strconv.ParseBool(cellStr)
		if err != nil {
			return fmt.Errorf("failed to parse bool: %w", err)
		}
		field.SetBool(boolVal)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
