package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"myfinance/internal/core"
	"myfinance/internal/ledger"
	applog "myfinance/internal/log"
	"myfinance/internal/reports"
)

type createTransactionRequest struct {
	Type       string      `json:"type"`
	Amount     AmountField `json:"amount"`
	Currency   string      `json:"currency"`
	Note       string      `json:"note"`
	CategoryID string      `json:"categoryId"`
	Date       string      `json:"date"`
}

type setTypeRequest struct {
	Type string `json:"type"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

type currencyResponse struct {
	Primary   core.Currency `json:"primary"`
	Secondary core.Currency `json:"secondary"`
}

// transactionView adds the resolved category name to a transaction.
type transactionView struct {
	core.Transaction
	CategoryName string `json:"categoryName"`
}

func (s *Server) view(tx core.Transaction) transactionView {
	return transactionView{Transaction: tx, CategoryName: s.ledger.CategoryName(tx.CategoryID)}
}

func (s *Server) views(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, s.view(tx))
	}
	return out
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.views(s.ledger.Transactions())).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.Transaction(chi.URLParam(r, "id"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Data(s.view(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	in, err := req.toNewTransaction()
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	tx, err := s.ledger.AddTransaction(r.Context(), in)
	if err != nil {
		s.logFailure(r, applog.OpCreate+" transaction", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Data(s.view(tx)).
		Write(w)
}

func (req createTransactionRequest) toNewTransaction() (ledger.NewTransaction, error) {
	t, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return ledger.NewTransaction{}, err
	}
	amount, err := req.Amount.Parse()
	if err != nil {
		return ledger.NewTransaction{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return ledger.NewTransaction{}, err
	}
	in := ledger.NewTransaction{
		Type:       t,
		Amount:     amount,
		Currency:   currency,
		Note:       sanitizeInput(req.Note),
		CategoryID: strings.TrimSpace(req.CategoryID),
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return ledger.NewTransaction{}, err
		}
		in.Date = d
	}
	return in, nil
}

func (s *Server) handleSetTransactionType(w http.ResponseWriter, r *http.Request) {
	var req setTypeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := core.ParseTransactionType(req.Type)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	tx, err := s.ledger.SetTransactionType(r.Context(), chi.URLParam(r, "id"), t)
	if err != nil {
		s.logFailure(r, applog.OpUpdate+" transaction type", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Data(s.view(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logFailure(r, applog.OpDelete+" transaction", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.ledger.Categories()).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.ledger.AddCategory(r.Context(), req.input())
	if err != nil {
		s.logFailure(r, applog.OpCreate+" category", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.ledger.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.logFailure(r, applog.OpUpdate+" category", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logFailure(r, applog.OpDelete+" category", err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleCategoryTransactions lists one category's entries of the given type
// inside the period around date (defaults: expense, month, today).
func (s *Server) handleCategoryTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t := core.Expense
	if v := q.Get("type"); v != "" {
		parsed, err := core.ParseTransactionType(v)
		if err != nil {
			ErrorFor(err).Write(w)
			return
		}
		t = parsed
	}
	params, err := ParseStatisticsParams(q, s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	txs := s.ledger.TransactionsByCategory(chi.URLParam(r, "id"), t, params.Period, params.Date)
	NewJSONResponse().Data(s.views(txs)).Write(w)
}

func (req categoryRequest) input() ledger.CategoryInput {
	return ledger.CategoryInput{
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
		Icon:  sanitizeInput(req.Icon),
	}
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(currencyResponse{
		Primary:   s.ledger.PrimaryCurrency(),
		Secondary: s.ledger.SecondaryCurrency(),
	}).Write(w)
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := core.ParseCurrency(req.Currency)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := s.ledger.SetPrimaryCurrency(r.Context(), c); err != nil {
		s.logFailure(r, applog.OpUpdate+" primary currency", err)
		ErrorFor(err).Write(w)
		return
	}
	s.handleGetCurrency(w, r)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(reports.BuildOverview(s.ledger.ReportInput())).Write(w)
}

// handleStatistics serves cached statistics. The cache key carries the
// ledger revision and the rate state so any change misses.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	params, err := ParseStatisticsParams(r.URL.Query(), s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	key := statisticsCacheKey(params, s.ledger.Revision(), s.rates.Snapshot())
	if stats, ok := s.statsCache.Get(key); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Data(stats).Write(w)
		return
	}

	stats := reports.BuildStatistics(s.ledger.ReportInput(), reports.Query{
		Period:     params.Period,
		Date:       params.Date,
		Comparison: params.Comparison,
		Today:      s.now(),
	})
	s.statsCache.Set(key, stats)
	NewJSONResponse().Header("X-Cache", "MISS").Data(stats).Write(w)
}

// logFailure logs unexpected service errors; client mistakes are not logged.
func (s *Server) logFailure(r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrNotFound) {
		return
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return
		}
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
}
