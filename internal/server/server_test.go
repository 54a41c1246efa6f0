package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/end-of-trade/internal/store/memory"
	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/constants"
	"go.uber.org/zap"
)

var testNow = time.Date(2023, time.August, 31, 18, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	if opts.Ledger == nil {
		opts.Ledger = takings.NewLedger(memory.New(), zap.NewNop(),
			takings.WithClock(func() time.Time { return testNow }))
	}
	return NewHandler(zap.NewNop(), opts)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rr, &body)
	if body["error"] == "" {
		t.Fatalf("expected error message in response, got %s", rr.Body.String())
	}
	return body["code"]
}

const scenarioAJSON = `{"5c":10,"10c":15,"20c":10,"50c":20,"$1":50,"$2":40,"$5":30,"$10":10,"$20":5,"$50":10,"$100":5}`

func TestHandleOptimalFloatWellStockedDrawer(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := doJSON(t, h, http.MethodPost, "/api/optimal-float",
		`{"available_denominations":`+scenarioAJSON+`,"target_value":"500.00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp optimalFloatResponse
	decodeBody(t, rr, &resp)

	if resp.TotalValue != "500.00" {
		t.Fatalf("expected total 500.00, got %s", resp.TotalValue)
	}
	if resp.Counts["$100"] != 0 {
		t.Fatalf("expected no $100 notes, got %d", resp.Counts["$100"])
	}
	if resp.Counts["$50"] > 1 {
		t.Fatalf("expected at most one $50 note, got %d", resp.Counts["$50"])
	}
	if resp.OptimalFloat["$5"] != "150.00" {
		t.Fatalf("expected $5 value 150.00, got %s", resp.OptimalFloat["$5"])
	}
	if resp.Pass == "" {
		t.Fatal("expected solver pass in response")
	}
}

func TestHandleOptimalFloatDefaultTarget(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := doJSON(t, h, http.MethodPost, "/api/optimal-float", `{"available_denominations":{"$20":30}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp optimalFloatResponse
	decodeBody(t, rr, &resp)
	if resp.TotalValue != constants.DefaultTillTarget || resp.Counts["$20"] != 25 {
		t.Fatalf("expected 25 x $20 for the default target, got %+v", resp)
	}
}

func TestHandleOptimalFloatErrors(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "insufficient funds",
			body:       `{"available_denominations":{"5c":20,"10c":10,"20c":10,"50c":10,"$1":10,"$2":10,"$5":5,"$10":4,"$20":7,"$50":2,"$100":1},"target_value":500}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INSUFFICIENT_FUNDS",
		},
		{
			name:       "no exact allocation",
			body:       `{"available_denominations":{"$100":10},"target_value":50}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "NO_EXACT_ALLOCATION",
		},
		{
			name:       "unknown denomination",
			body:       `{"available_denominations":{"$3":10},"target_value":50}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "negative count",
			body:       `{"available_denominations":{"$5":-1},"target_value":50}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "non-positive target",
			body:       `{"available_denominations":{"$5":10},"target_value":0}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "sub cent target",
			body:       `{"available_denominations":{"$5":10},"target_value":0.001}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "target with sub cent digits",
			body:       `{"available_denominations":{"$5":200},"target_value":500.004}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "count above ceiling",
			body:       `{"available_denominations":{"$100":922337203685477581},"target_value":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "missing denominations",
			body:       `{"target_value":50}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"available":{}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/api/optimal-float", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.wantCode {
				t.Fatalf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestHandleOptimalFloatBodyTooLarge(t *testing.T) {
	h := newTestHandler(t, Options{MaxBodySize: 16})

	rr := doJSON(t, h, http.MethodPost, "/api/optimal-float",
		`{"available_denominations":`+scenarioAJSON+`}`)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleOptimalFloatMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := doJSON(t, h, http.MethodGet, "/api/optimal-float", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleSafeFloatTransfer(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantAction string
		wantAmount string
		wantDiff   string
	}{
		{
			name:       "short of target",
			body:       `{"safe_float":{"$100":10},"target_value":1500}`,
			wantAction: "withdraw",
			wantAmount: "500.00",
			wantDiff:   "-500.00",
		},
		{
			name:       "over default target",
			body:       `{"safe_float":{"$100":16}}`,
			wantAction: "deposit",
			wantAmount: "100.00",
			wantDiff:   "100.00",
		},
		{
			name:       "on target",
			body:       `{"safe_float":{"$50":30},"target_value":"1500.00"}`,
			wantAction: "none",
			wantAmount: "0.00",
			wantDiff:   "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/api/safe-float-transfer", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp safeTransferResponse
			decodeBody(t, rr, &resp)
			if string(resp.Action) != tt.wantAction || resp.Amount != tt.wantAmount || resp.Difference != tt.wantDiff {
				t.Fatalf("unexpected transfer %+v", resp)
			}
		})
	}

	rr := doJSON(t, h, http.MethodPost, "/api/safe-float-transfer", `{"target_value":1500}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing safe_float, got %d", rr.Code)
	}
}

func TestHandleOptimizeDistribution(t *testing.T) {
	h := newTestHandler(t, Options{})

	t.Run("exact", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/optimize-distribution",
			`{"safe_float":{"$20":75},"till_float":{"$50":10},"safe_target":1500,"till_target":500}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp distributionResponse
		decodeBody(t, rr, &resp)

		if !resp.Exact || resp.Strategy != "exact" {
			t.Fatalf("expected exact plan, got %+v", resp)
		}
		if resp.TillTotal != "500.00" || resp.SafeTotal != "1500.00" {
			t.Fatalf("unexpected totals safe=%s till=%s", resp.SafeTotal, resp.TillTotal)
		}
		if resp.Movements["$20"] != 25 || resp.Movements["$50"] != -10 {
			t.Fatalf("unexpected movements %+v", resp.Movements)
		}
		if resp.TillVariance != "0.00" {
			t.Fatalf("expected zero till variance, got %s", resp.TillVariance)
		}
	})

	t.Run("best effort", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/optimize-distribution",
			`{"safe_float":{"$100":20},"till_float":{},"safe_target":1500,"till_target":50}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp distributionResponse
		decodeBody(t, rr, &resp)

		if resp.Exact || resp.Strategy != "best_effort" {
			t.Fatalf("expected best effort plan, got %+v", resp)
		}
		if resp.TillVariance != "-50.00" {
			t.Fatalf("expected till variance -50.00, got %s", resp.TillVariance)
		}
	})

	t.Run("insufficient combined funds", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/optimize-distribution",
			`{"safe_float":{"$100":1},"till_float":{"$5":1}}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
		if code := errorCode(t, rr); code != "INSUFFICIENT_COMBINED_FUNDS" {
			t.Fatalf("expected INSUFFICIENT_COMBINED_FUNDS, got %s", code)
		}
	})
}

const fullFloats = `"floats":{
	"safe_float_open":{"$50":30},
	"safe_float_close":{"$50":28,"$20":5},
	"till_float_open":{"$5":100},
	"till_float_close_before_makeup":{"$5":80,"$2":10}
}`

func TestTakingsLifecycle(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := doJSON(t, h, http.MethodGet, "/api/takings/2023-08-01", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var view takingsView
	decodeBody(t, rr, &view)
	if view.State != takings.StateOpen || view.Variance != nil || view.Date != "2023-08-01" {
		t.Fatalf("expected empty open record, got %+v", view)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01", `{
		"till_read":"2500.00",
		"payments":{"eftpos":"1200.00","portable_eftpos":"300.00","amex":"200.00","diners":"50.00","account_charges":"100.00","total_cash":"600.00"},
		"customer_count":42
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &view)
	if view.Variance == nil || *view.Variance != "50.00" {
		t.Fatalf("expected variance 50.00, got %+v", view.Variance)
	}
	if view.PaymentsTotal != "2450.00" {
		t.Fatalf("expected payments total 2450.00, got %s", view.PaymentsTotal)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01/settle", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 before floats are counted, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "INCOMPLETE_DATA" {
		t.Fatalf("expected INCOMPLETE_DATA, got %s", code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01", `{`+fullFloats+`,"settle":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var settlement settlementView
	decodeBody(t, rr, &settlement)
	if settlement.Record.State != takings.StateSettled || settlement.Record.SettledAt == nil {
		t.Fatalf("expected settled record, got %+v", settlement.Record)
	}
	if settlement.HighVariance {
		t.Fatal("variance 50.00 should not be flagged")
	}
	if got := settlement.Record.Floats["safe_float_close"].Total; got != "1500.00" {
		t.Fatalf("expected safe close total 1500.00, got %s", got)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01", `{"customer_count":43}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 editing a settled record, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01/settle", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 settling twice, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestTakingsHighVarianceWarning(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := doJSON(t, h, http.MethodPost, "/api/takings/2023-08-02",
		`{"till_read":"1000.00","payments":{"total_cash":"700.00"},`+fullFloats+`,"settle":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var settlement settlementView
	decodeBody(t, rr, &settlement)
	if !settlement.HighVariance || len(settlement.Warnings) == 0 {
		t.Fatalf("expected high variance warning, got %+v", settlement)
	}
}

func TestTakingsRejections(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "future date", method: http.MethodGet, path: "/api/takings/2023-09-01", wantStatus: http.StatusBadRequest},
		{name: "malformed date", method: http.MethodGet, path: "/api/takings/01-08-2023", wantStatus: http.StatusBadRequest},
		{name: "impossible date", method: http.MethodGet, path: "/api/takings/2023-02-30", wantStatus: http.StatusBadRequest},
		{name: "unknown payment method", method: http.MethodPost, path: "/api/takings/2023-08-03", body: `{"payments":{"cheque":"10.00"}}`, wantStatus: http.StatusBadRequest},
		{name: "negative customers", method: http.MethodPost, path: "/api/takings/2023-08-03", body: `{"customer_count":-1}`, wantStatus: http.StatusBadRequest},
		{name: "unknown section", method: http.MethodPost, path: "/api/takings/2023-08-03", body: `{"floats":{"drawer":{"$5":1}}}`, wantStatus: http.StatusBadRequest},
		{name: "invalid float denomination", method: http.MethodPost, path: "/api/takings/2023-08-03", body: `{"floats":{"till_float_open":{"$7":1}}}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleCalendar(t *testing.T) {
	h := newTestHandler(t, Options{})

	if rr := doJSON(t, h, http.MethodPost, "/api/takings/2023-08-01", `{`+fullFloats+`,"settle":true}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to settle: %d %s", rr.Code, rr.Body.String())
	}
	if rr := doJSON(t, h, http.MethodPost, "/api/takings/2023-08-02", `{"till_read":"10.00"}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to reconcile: %d %s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, h, http.MethodGet, "/api/calendar/2023/8", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp calendarResponse
	decodeBody(t, rr, &resp)

	if strings.Join(resp.Settled, ",") != "2023-08-01" {
		t.Fatalf("expected settled [2023-08-01], got %v", resp.Settled)
	}
	if strings.Join(resp.Unsettled, ",") != "2023-08-02" {
		t.Fatalf("expected unsettled [2023-08-02], got %v", resp.Unsettled)
	}
	if resp.Prev != (monthRef{Year: 2023, Month: 7}) || resp.Next != (monthRef{Year: 2023, Month: 9}) {
		t.Fatalf("unexpected adjacent months prev=%+v next=%+v", resp.Prev, resp.Next)
	}

	for _, path := range []string{"/api/calendar/2023/13", "/api/calendar/year/8"} {
		if rr := doJSON(t, h, http.MethodGet, path, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for %s, got %d", path, rr.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(constants.RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(constants.RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected echoed request id abc-123, got %q", got)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/version", "")
	if _, err := uuid.Parse(rr.Header().Get(constants.RequestIDHeader)); err != nil {
		t.Fatalf("expected generated uuid request id, got %q: %v", rr.Header().Get(constants.RequestIDHeader), err)
	}
}

func TestHandleVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "explicit", version: " 1.2.3 ", want: "1.2.3"},
		{name: "default", version: "", want: "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, Options{Version: tt.version})
			rr := doJSON(t, h, http.MethodGet, "/api/version", "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			var resp map[string]string
			decodeBody(t, rr, &resp)
			if resp["version"] != tt.want {
				t.Fatalf("expected version %q, got %q", tt.want, resp["version"])
			}
		})
	}
}

func TestTakingsRoutesRequireLedger(t *testing.T) {
	h := NewHandler(nil, Options{})

	rr := doJSON(t, h, http.MethodGet, "/api/takings/2023-08-01", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 without a ledger, got %d", rr.Code)
	}
}
