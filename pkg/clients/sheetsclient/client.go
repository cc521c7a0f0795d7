package sheetsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	valueInputRaw         = "RAW"

	// Only the value and background of each cell are needed to decide claimability
	cellFields googleapi.Field = "sheets(data(rowData(values(formattedValue,effectiveValue,effectiveFormat/backgroundColor))))"
)

// Client wraps the Google Sheets API client
type Client struct {
	service *sheets.Service
	timeout time.Duration
}

// NewClient creates a Sheets client on top of an already authorised HTTP client.
// Every call is bounded by timeout when it is positive.
func NewClient(ctx context.Context, httpClient *http.Client, timeout time.Duration, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
		timeout: timeout,
	}, nil
}

// Service returns the underlying sheets service for direct API access
func (c *Client) Service() *sheets.Service {
	return c.service
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// GetValues reads values from a spreadsheet range
func (c *Client) GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}

	return resp.Values, nil
}

// GetCell reads the value and background colour of the first cell in sheetRange
func (c *Client) GetCell(ctx context.Context, spreadsheetID, sheetRange string) (*model.ShiftCell, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Ranges(sheetRange).
		IncludeGridData(true).
		Fields(cellFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get cell data: %w", err)
	}

	return cellFromSpreadsheet(resp), nil
}

// UpdateValues overwrites a range, interpreting values as if typed by a user
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, sheetRange, &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update values: %w", err)
	}

	return nil
}

// AppendRows appends rows to the end of a sheet
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.service.Spreadsheets.Values.Append(spreadsheetID, sheetRange, &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}

	return nil
}

// EnsureSheet creates a tab named sheetTitle unless it already exists.
// It reports whether the tab was created.
func (c *Client) EnsureSheet(ctx context.Context, spreadsheetID, sheetTitle string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).Fields("sheets(properties(title))").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetTitle {
			return false, nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetTitle},
			},
		}},
	}

	if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("failed to create sheet: %w", err)
	}

	return true, nil
}

// cellFromSpreadsheet extracts the first cell of the first grid in a spreadsheet response.
// A cell absent from the response is empty and has no background.
func cellFromSpreadsheet(resp *sheets.Spreadsheet) *model.ShiftCell {
	cell := &model.ShiftCell{}
	if resp == nil || len(resp.Sheets) == 0 || len(resp.Sheets[0].Data) == 0 {
		return cell
	}

	grid := resp.Sheets[0].Data[0]
	if len(grid.RowData) == 0 || len(grid.RowData[0].Values) == 0 {
		return cell
	}

	data := grid.RowData[0].Values[0]
	cell.Value = cellText(data)
	if data.EffectiveFormat != nil && data.EffectiveFormat.BackgroundColor != nil {
		bg := data.EffectiveFormat.BackgroundColor
		cell.Background = &model.Color{Red: bg.Red, Green: bg.Green, Blue: bg.Blue}
	}

	return cell
}

func cellText(data *sheets.CellData) string {
	if data.FormattedValue != "" {
		return data.FormattedValue
	}
	ev := data.EffectiveValue
	if ev == nil {
		return ""
	}
	switch {
	case ev.StringValue != nil:
		return *ev.StringValue
	case ev.NumberValue != nil:
		return fmt.Sprint(*ev.NumberValue)
	case ev.BoolValue != nil:
		return fmt.Sprint(*ev.BoolValue)
	}
	return ""
}
