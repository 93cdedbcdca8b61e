package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"myfinance/internal/core"
	ports "myfinance/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets v4 values API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	columnA map[string][][]any
	appends []appendCall
	updates map[string][][]any
}

type appendCall struct {
	Range  string
	Values [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}
	}

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		rng = strings.TrimSuffix(rng, ":append")
		f.appends = append(f.appends, appendCall{Range: rng, Values: body.Values})
		sheet, _, _ := strings.Cut(rng, "!")
		writeJSON(w, map[string]any{"updates": map[string]any{"updatedRange": sheet + "!A2:I2"}})
	case r.Method == http.MethodGet:
		sheet, _, _ := strings.Cut(rng, "!")
		writeJSON(w, map[string]any{"range": rng, "values": f.columnA[sheet]})
	case r.Method == http.MethodPut:
		if f.updates == nil {
			f.updates = map[string][][]any{}
		}
		f.updates[rng] = body.Values
		writeJSON(w, map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		SheetName:     "Transactions",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func sampleTx() core.Transaction {
	return core.Transaction{
		ID:                   "tx-1",
		Type:                 core.Expense,
		Amount:               90,
		Currency:             core.EUR,
		Note:                 "groceries",
		CategoryID:           "food",
		Date:                 core.NewDate(2024, 3, 15),
		USDValueAtEntry:      100,
		ExchangeRatesAtEntry: core.RateTable{core.USD: 1, core.EUR: 0.9, core.UAH: 40},
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected credentials error, got: %v", err)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestCredentials_PrefersInlineJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(file, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := credentials(context.Background(), discardLogger(), ` {"from":"inline"} `, file)
	if err != nil {
		t.Fatalf("credentials() error = %v", err)
	}
	if string(got) != `{"from":"inline"}` {
		t.Errorf("credentials() = %s, want inline JSON", got)
	}

	got, err = credentials(context.Background(), discardLogger(), "", file)
	if err != nil {
		t.Fatalf("credentials() error = %v", err)
	}
	if string(got) != `{"from":"file"}` {
		t.Errorf("credentials() = %s, want file contents", got)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"Ledger", 2024, "2024 Ledger"},
		{"", 2023, ""}, // Empty base returns empty
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"}, // Already has year prefix
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestRow(t *testing.T) {
	row := Row(sampleTx(), "Food")
	if len(row) != len(Header) {
		t.Fatalf("Row() has %d columns, header has %d", len(row), len(Header))
	}
	want := []any{"tx-1", "2024-03-15", "expense", 90.0, "EUR", 100.0, "Food", "groceries", ports.StatusActive}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %v = %v, want %v", Header[i], row[i], want[i])
		}
	}
}

func TestClient_AppendTransaction(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendTransaction(context.Background(), sampleTx(), "Food")
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "2024 Transactions!A2:I2" {
		t.Errorf("AppendTransaction() ref = %q", ref)
	}
	if len(fake.appends) != 1 {
		t.Fatalf("expected 1 append call, got %d", len(fake.appends))
	}
	call := fake.appends[0]
	if call.Range != "2024 Transactions!A:I" {
		t.Errorf("append range = %q", call.Range)
	}
	if len(call.Values) != 1 || call.Values[0][0] != "tx-1" || call.Values[0][6] != "Food" {
		t.Errorf("append values = %v", call.Values)
	}
}

func TestClient_AppendTransaction_Invalid(t *testing.T) {
	c := &Client{spreadsheetID: "test"} // svc is nil; validation runs first

	tx := sampleTx()
	tx.Amount = 0
	_, err := c.AppendTransaction(context.Background(), tx, "Food")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got: %v", err)
	}
}

func TestClient_MarkDeletedAndUpdateType(t *testing.T) {
	fake := &fakeSheets{columnA: map[string][][]any{
		"2024 Transactions": {{"ID"}, {"tx-0"}, {}, {"tx-1"}},
	}}
	c := newTestClient(t, fake)
	tx := sampleTx()

	if err := c.MarkDeleted(context.Background(), tx); err != nil {
		t.Fatalf("MarkDeleted() error = %v", err)
	}
	if got := fake.updates["2024 Transactions!I4"]; len(got) != 1 || got[0][0] != ports.StatusDeleted {
		t.Errorf("status update = %v, updates = %v", got, fake.updates)
	}

	tx.Type = core.Income
	if err := c.UpdateType(context.Background(), tx); err != nil {
		t.Fatalf("UpdateType() error = %v", err)
	}
	if got := fake.updates["2024 Transactions!C4"]; len(got) != 1 || got[0][0] != "income" {
		t.Errorf("type update = %v", got)
	}
}

func TestClient_RowNotFound(t *testing.T) {
	fake := &fakeSheets{columnA: map[string][][]any{"2024 Transactions": {{"ID"}}}}
	c := newTestClient(t, fake)

	err := c.MarkDeleted(context.Background(), sampleTx())
	if !errors.Is(err, ports.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got: %v", err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
