package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/end-of-trade/internal/planner"
	"github.com/iwvelando/end-of-trade/internal/solver"
	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/datetime"
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options carries the collaborators of the HTTP handler.
type Options struct {
	Ledger      *takings.Ledger
	Planner     *planner.Planner
	TillTarget  decimal.Decimal
	SafeTarget  decimal.Decimal
	MaxBodySize int64
	Version     string
}

type handler struct {
	logger      *zap.Logger
	ledger      *takings.Ledger
	planner     *planner.Planner
	tillTarget  decimal.Decimal
	safeTarget  decimal.Decimal
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler that serves the float and takings API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = constants.DefaultMaxBodySizeBytes
	}
	if !opts.TillTarget.IsPositive() {
		opts.TillTarget = decimal.RequireFromString(constants.DefaultTillTarget)
	}
	if !opts.SafeTarget.IsPositive() {
		opts.SafeTarget = decimal.RequireFromString(constants.DefaultSafeTarget)
	}
	if opts.Planner == nil {
		opts.Planner = planner.New(logger)
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:      logger,
		ledger:      opts.Ledger,
		planner:     opts.Planner,
		tillTarget:  opts.TillTarget,
		safeTarget:  opts.SafeTarget,
		maxBodySize: opts.MaxBodySize,
		version:     trimmedVersion,
	}

	mux := http.NewServeMux()

	// Float calculators
	mux.HandleFunc("POST /api/optimal-float", h.handleOptimalFloat)
	mux.HandleFunc("POST /api/safe-float-transfer", h.handleSafeFloatTransfer)
	mux.HandleFunc("POST /api/optimize-distribution", h.handleOptimizeDistribution)

	// Daily takings
	if h.ledger != nil {
		mux.HandleFunc("GET /api/takings/{date}", h.handleGetTakings)
		mux.HandleFunc("POST /api/takings/{date}", h.handleSaveTakings)
		mux.HandleFunc("POST /api/takings/{date}/settle", h.handleSettleTakings)
		mux.HandleFunc("GET /api/calendar/{year}/{month}", h.handleCalendar)
	}

	// Version endpoint for UI metadata
	mux.HandleFunc("GET /api/version", h.handleVersion)

	return h.withRequestID(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID echoes X-Request-ID, generating one when the client sent none,
// and logs every request with it.
func (h *handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(constants.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(constants.RequestIDHeader, id)
		}
		w.Header().Set(constants.RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.logger.Debug("request served",
			zap.String("op", "server.withRequestID"),
			zap.String("requestId", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type optimalFloatRequest struct {
	AvailableDenominations map[string]int64 `json:"available_denominations"`
	TargetValue            *decimal.Decimal `json:"target_value"`
}

type optimalFloatResponse struct {
	Counts       map[string]int64  `json:"counts"`
	OptimalFloat map[string]string `json:"optimal_float"`
	TotalValue   string            `json:"total_value"`
	Pass         solver.Pass       `json:"pass"`
}

func (h *handler) handleOptimalFloat(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimalFloat"

	var req optimalFloatRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	if req.AvailableDenominations == nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "missing required field: available_denominations", op)
		return
	}

	target := h.tillTarget
	if req.TargetValue != nil {
		target = *req.TargetValue
	}

	res, err := solver.SolveDetailed(toInventory(req.AvailableDenominations), target)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}

	values, err := inventory.Values(res.Allocation)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}
	total, _ := inventory.TotalValue(res.Allocation)

	h.logger.Info("optimal float calculated",
		zap.String("op", op),
		zap.String("requestId", requestID(r)),
		zap.String("target", target.StringFixed(2)),
		zap.String("pass", string(res.Pass)),
	)

	h.writeJSON(w, http.StatusOK, optimalFloatResponse{
		Counts:       fromInventory(res.Allocation),
		OptimalFloat: fromValues(values),
		TotalValue:   total.StringFixed(2),
		Pass:         res.Pass,
	})
}

type safeTransferRequest struct {
	SafeFloat   map[string]int64 `json:"safe_float"`
	TargetValue *decimal.Decimal `json:"target_value"`
}

type safeTransferResponse struct {
	CurrentTotal string         `json:"current_total"`
	TargetValue  string         `json:"target_value"`
	Difference   string         `json:"difference"`
	Action       planner.Action `json:"action"`
	Amount       string         `json:"amount"`
}

func (h *handler) handleSafeFloatTransfer(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSafeFloatTransfer"

	var req safeTransferRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	if req.SafeFloat == nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "missing required field: safe_float", op)
		return
	}

	target := h.safeTarget
	if req.TargetValue != nil {
		target = *req.TargetValue
	}

	transfer, err := planner.SafeTransfer(toInventory(req.SafeFloat), target)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, safeTransferResponse{
		CurrentTotal: transfer.CurrentTotal.StringFixed(2),
		TargetValue:  transfer.TargetValue.StringFixed(2),
		Difference:   transfer.Difference.StringFixed(2),
		Action:       transfer.Action,
		Amount:       transfer.Amount.StringFixed(2),
	})
}

type distributionRequest struct {
	SafeFloat  map[string]int64 `json:"safe_float"`
	TillFloat  map[string]int64 `json:"till_float"`
	SafeTarget *decimal.Decimal `json:"safe_target"`
	TillTarget *decimal.Decimal `json:"till_target"`
}

type distributionResponse struct {
	SafeAdjusted map[string]int64 `json:"safe_adjusted"`
	TillAdjusted map[string]int64 `json:"till_adjusted"`
	Movements    map[string]int64 `json:"movements"`
	SafeTotal    string           `json:"safe_total"`
	TillTotal    string           `json:"till_total"`
	SafeVariance string           `json:"safe_variance"`
	TillVariance string           `json:"till_variance"`
	Strategy     planner.Strategy `json:"strategy"`
	Exact        bool             `json:"exact"`
}

func (h *handler) handleOptimizeDistribution(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimizeDistribution"

	var req distributionRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	if req.SafeFloat == nil || req.TillFloat == nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "missing required fields: safe_float and till_float", op)
		return
	}

	safeTarget, tillTarget := h.safeTarget, h.tillTarget
	if req.SafeTarget != nil {
		safeTarget = *req.SafeTarget
	}
	if req.TillTarget != nil {
		tillTarget = *req.TillTarget
	}

	plan, err := h.planner.Redistribute(toInventory(req.SafeFloat), toInventory(req.TillFloat), safeTarget, tillTarget)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, distributionResponse{
		SafeAdjusted: fromInventory(plan.SafeAdjusted),
		TillAdjusted: fromInventory(plan.TillAdjusted),
		Movements:    fromInventory(plan.Movements),
		SafeTotal:    plan.SafeTotal.StringFixed(2),
		TillTotal:    plan.TillTotal.StringFixed(2),
		SafeVariance: plan.SafeVariance.StringFixed(2),
		TillVariance: plan.TillVariance.StringFixed(2),
		Strategy:     plan.Strategy,
		Exact:        plan.Exact,
	})
}

type sectionView struct {
	Counts map[string]int64 `json:"counts"`
	Total  string           `json:"total"`
}

type takingsView struct {
	Date           string                 `json:"date"`
	State          takings.State          `json:"state"`
	TillRead       *string                `json:"till_read"`
	Payments       map[string]string      `json:"payments"`
	PaymentsTotal  string                 `json:"payments_total"`
	PointsRedeemed *string                `json:"points_redeemed"`
	CustomerCount  *int64                 `json:"customer_count"`
	Floats         map[string]sectionView `json:"floats"`
	Variance       *string                `json:"variance"`
	SettledAt      *time.Time             `json:"settled_at,omitempty"`
}

type settlementView struct {
	Record       takingsView `json:"record"`
	HighVariance bool        `json:"high_variance"`
	Warnings     []string    `json:"warnings,omitempty"`
}

type takingsRequest struct {
	TillRead       *decimal.Decimal            `json:"till_read"`
	Payments       map[string]decimal.Decimal  `json:"payments"`
	PointsRedeemed *decimal.Decimal            `json:"points_redeemed"`
	CustomerCount  *int64                      `json:"customer_count"`
	Floats         map[string]map[string]int64 `json:"floats"`
	Settle         bool                        `json:"settle"`
}

func (req takingsRequest) fields() takings.Fields {
	f := takings.Fields{
		TillRead:       req.TillRead,
		PointsRedeemed: req.PointsRedeemed,
		CustomerCount:  req.CustomerCount,
	}
	if len(req.Payments) > 0 {
		f.Payments = make(map[takings.PaymentMethod]decimal.Decimal, len(req.Payments))
		for m, v := range req.Payments {
			f.Payments[takings.PaymentMethod(m)] = v
		}
	}
	if len(req.Floats) > 0 {
		f.Floats = make(map[takings.Section]inventory.Inventory, len(req.Floats))
		for s, counts := range req.Floats {
			f.Floats[takings.Section(s)] = toInventory(counts)
		}
	}
	return f
}

func (h *handler) handleGetTakings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetTakings"

	date, ok := h.pathDate(w, r, op)
	if !ok {
		return
	}
	rec, err := h.ledger.Get(r.Context(), date)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, newTakingsView(rec))
}

func (h *handler) handleSaveTakings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSaveTakings"

	date, ok := h.pathDate(w, r, op)
	if !ok {
		return
	}
	var req takingsRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	if req.Settle {
		settlement, err := h.ledger.ReconcileAndSettle(r.Context(), date, req.fields())
		if err != nil {
			h.respondDomainError(w, r, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, newSettlementView(settlement))
		return
	}

	rec, err := h.ledger.Reconcile(r.Context(), date, req.fields())
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, newTakingsView(rec))
}

func (h *handler) handleSettleTakings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSettleTakings"

	date, ok := h.pathDate(w, r, op)
	if !ok {
		return
	}
	settlement, err := h.ledger.Settle(r.Context(), date)
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, newSettlementView(settlement))
}

type monthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type calendarResponse struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Settled   []string `json:"settled"`
	Unsettled []string `json:"unsettled"`
	Prev      monthRef `json:"prev"`
	Next      monthRef `json:"next"`
}

func (h *handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalendar"

	year, yearErr := strconv.Atoi(r.PathValue("year"))
	month, monthErr := strconv.Atoi(r.PathValue("month"))
	if yearErr != nil || monthErr != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest,
			fmt.Sprintf("invalid calendar month %s/%s", r.PathValue("year"), r.PathValue("month")), op)
		return
	}

	summary, err := h.ledger.Month(r.Context(), year, time.Month(month))
	if err != nil {
		h.respondDomainError(w, r, err, op)
		return
	}

	prevYear, prev, nextYear, next := datetime.AdjacentMonths(year, time.Month(month))
	h.writeJSON(w, http.StatusOK, calendarResponse{
		Year:      summary.Year,
		Month:     int(summary.Month),
		Settled:   formatDates(summary.Settled),
		Unsettled: formatDates(summary.Unsettled),
		Prev:      monthRef{Year: prevYear, Month: int(prev)},
		Next:      monthRef{Year: nextYear, Month: int(next)},
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) pathDate(w http.ResponseWriter, r *http.Request, op string) (time.Time, bool) {
	date, err := datetime.ParseDate(r.PathValue("date"))
	if err != nil {
		h.respondDomainError(w, r, domainerr.Wrap(domainerr.CodeInvalidInput, "date", err), op)
		return time.Time{}, false
	}
	return date, true
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.respondErrorWithOp(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
		case errors.Is(err, io.EOF):
			h.respondErrorWithOp(w, r, http.StatusBadRequest, "missing request data", op)
		default:
			h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		}
		return false
	}
	return true
}

// statusFor maps a domain error code to its HTTP status.
func statusFor(code domainerr.Code) int {
	switch code {
	case domainerr.CodeInvalidInput,
		domainerr.CodeInvalidDenomination,
		domainerr.CodeNegativeCount,
		domainerr.CodeInsufficientFunds,
		domainerr.CodeInsufficientCombinedFunds:
		return http.StatusBadRequest
	case domainerr.CodeNoExactAllocation, domainerr.CodeIncompleteData:
		return http.StatusUnprocessableEntity
	case domainerr.CodeRecordSettled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error, op string) {
	code := domainerr.CodeOf(err)
	status := statusFor(code)

	body := map[string]string{"error": err.Error()}
	if code != "" {
		body["code"] = string(code)
	}
	var de *domainerr.Error
	if errors.As(err, &de) && de.Field != "" {
		body["field"] = de.Field
	}
	if status == http.StatusInternalServerError {
		body = map[string]string{"error": "internal error"}
	}

	h.logFailure(r, status, err.Error(), op)
	h.writeJSON(w, status, body)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	h.logFailure(r, status, msg, op)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) logFailure(r *http.Request, status int, msg string, op string) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("request failed",
		zap.String("op", op),
		zap.String("requestId", requestID(r)),
		zap.Int("status", status),
		zap.String("error", msg),
	)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}

func requestID(r *http.Request) string {
	return r.Header.Get(constants.RequestIDHeader)
}

func toInventory(counts map[string]int64) inventory.Inventory {
	inv := make(inventory.Inventory, len(counts))
	for k, v := range counts {
		inv[denomination.Key(k)] = v
	}
	return inv
}

func fromInventory(inv inventory.Inventory) map[string]int64 {
	out := make(map[string]int64, len(denomination.Keys()))
	for _, key := range denomination.Keys() {
		out[string(key)] = inv[key]
	}
	return out
}

func fromValues(values map[denomination.Key]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(values))
	for key, v := range values {
		out[string(key)] = v.StringFixed(2)
	}
	return out
}

func optionalAmount(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.StringFixed(2)
	return &s
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(constants.DateLayout))
	}
	return out
}

func newTakingsView(rec takings.Record) takingsView {
	t := rec.Takings()
	view := takingsView{
		Date:           rec.Date().Format(constants.DateLayout),
		State:          rec.State(),
		TillRead:       optionalAmount(t.TillRead),
		Payments:       make(map[string]string, len(t.Payments)),
		PaymentsTotal:  t.PaymentsTotal().StringFixed(2),
		PointsRedeemed: optionalAmount(t.PointsRedeemed),
		CustomerCount:  t.CustomerCount,
		Floats:         make(map[string]sectionView, len(t.Floats)),
		Variance:       optionalAmount(t.Variance),
	}
	for m, v := range t.Payments {
		view.Payments[string(m)] = v.StringFixed(2)
	}
	for s, inv := range t.Floats {
		view.Floats[string(s)] = sectionView{
			Counts: fromInventory(inv),
			Total:  t.FloatTotal(s).StringFixed(2),
		}
	}
	if settled, ok := rec.(takings.SettledRecord); ok {
		at := settled.SettledAt()
		view.SettledAt = &at
	}
	return view
}

func newSettlementView(s takings.Settlement) settlementView {
	return settlementView{
		Record:       newTakingsView(s.Record),
		HighVariance: s.HighVariance,
		Warnings:     s.Warnings,
	}
}
