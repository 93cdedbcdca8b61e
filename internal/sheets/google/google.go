package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"myfinance/internal/core"
	applog "myfinance/internal/log"
	ports "myfinance/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Column layout of the mirror sheet.
const (
	colID       = "A"
	colType     = "C"
	colStatus   = "I"
	lastColumn  = "I"
	inputOption = "USER_ENTERED"
)

// Header is the first row expected in every mirror sheet.
var Header = []any{"ID", "Date", "Type", "Amount", "Currency", "USD at entry", "Category", "Note", "Status"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year; rows go to "<year> <base>" by transaction date.
	sheetBase string
	logger    *slog.Logger
}

// Ensure interface conformance
var _ ports.TransactionWriter = (*Client)(nil)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *slog.Logger
	// ClientOptions replace the service account credentials when set.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetBase := strings.TrimSpace(cfg.SheetName)
	if sheetBase == "" {
		sheetBase = "Transactions"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.FieldComponent, applog.ComponentSheets)

	opts := cfg.ClientOptions
	if len(opts) == 0 {
		creds, err := credentials(ctx, logger, cfg.CredentialsJSON, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheetBase)
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger,
	}, nil
}

// credentials returns the service account key, preferring inline JSON.
func credentials(ctx context.Context, logger *slog.Logger, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetName returns the sheet a transaction dated in year is mirrored to.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction, categoryName string) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := c.SheetName(tx.Date.Year())
	rng := fmt.Sprintf("%s!A:%s", sheet, lastColumn)
	vr := &gsheet.ValueRange{Values: [][]any{Row(tx, categoryName)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(inputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Appended transaction row", applog.FieldTransactionID, tx.ID, applog.FieldSheetsRef, ref)
	return ref, nil
}

func (c *Client) MarkDeleted(ctx context.Context, tx core.Transaction) error {
	return c.updateCell(ctx, tx, colStatus, ports.StatusDeleted)
}

func (c *Client) UpdateType(ctx context.Context, tx core.Transaction) error {
	return c.updateCell(ctx, tx, colType, string(tx.Type))
}

func (c *Client) updateCell(ctx context.Context, tx core.Transaction, col string, value any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := c.SheetName(tx.Date.Year())
	row, err := c.findRow(ctx, sheet, tx.ID)
	if err != nil {
		return err
	}

	cell := fmt.Sprintf("%s!%s%d", sheet, col, row)
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, cell, vr).
		ValueInputOption(inputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", cell, err)
	}
	c.logger.InfoContext(ctx, "Updated transaction row", applog.FieldTransactionID, tx.ID, applog.FieldSheetsRef, cell)
	return nil
}

// findRow returns the 1-based row holding id in the ID column.
func (c *Client) findRow(ctx context.Context, sheet, id string) (int, error) {
	rng := fmt.Sprintf("%s!%s:%s", sheet, colID, colID)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	if row := rowOf(resp.Values, id); row > 0 {
		return row, nil
	}
	return 0, fmt.Errorf("%s in %s: %w", id, sheet, ports.ErrRowNotFound)
}

// Row renders tx as the mirror sheet columns A..I.
func Row(tx core.Transaction, categoryName string) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		core.Round2(tx.Amount),
		string(tx.Currency),
		core.Round2(tx.USDValueAtEntry),
		categoryName,
		tx.Note,
		ports.StatusActive,
	}
}

func rowOf(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
