package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/end-of-trade/internal/config"
	"github.com/iwvelando/end-of-trade/internal/planner"
	"github.com/iwvelando/end-of-trade/internal/server"
	"github.com/iwvelando/end-of-trade/internal/solver"
	"github.com/iwvelando/end-of-trade/internal/store/sqlite"
	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/output"
	"github.com/iwvelando/end-of-trade/pkg/testutil"
	"go.uber.org/zap"
)

var clock = testutil.FixedClock(time.Date(2023, time.August, 31, 20, 0, 0, 0, time.UTC))

// newStack wires configuration, a file-backed SQLite store, the ledger and
// the HTTP handler the way the serve command does.
func newStack(t *testing.T) (http.Handler, *takings.Ledger, *config.Configuration) {
	t.Helper()
	logger := zap.NewNop()

	conf, err := config.LoadConfiguration("../config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Store.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %s", conf.Store.Driver)
	}

	store, err := sqlite.New(filepath.Join(t.TempDir(), conf.Store.Path))
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ledger := takings.NewLedger(store, logger,
		takings.WithClock(clock),
		takings.WithPolicy(takings.Policy{VarianceWarning: conf.VarianceWarning()}))

	h := server.NewHandler(logger, server.Options{
		Ledger:     ledger,
		Planner:    planner.New(logger),
		TillTarget: conf.TillTarget(),
		SafeTarget: conf.SafeTarget(),
		Version:    "integration",
	})
	return h, ledger, conf
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode %q: %v", rr.Body.String(), err)
	}
	return out
}

// TestEndOfTradeDay walks one trading day: plan the floats, record the
// takings, settle, and confirm the settled row survives in SQLite.
func TestEndOfTradeDay(t *testing.T) {
	h, ledger, _ := newStack(t)

	rr := post(t, h, "/api/optimize-distribution", `{
		"safe_float":{"$20":75},
		"till_float":{"$50":10}
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("optimize-distribution status %d: %s", rr.Code, rr.Body.String())
	}
	plan := decode(t, rr)
	if plan["exact"] != true {
		t.Errorf("expected exact plan from configured targets, got %v", plan)
	}

	rr = post(t, h, "/api/takings/2023-08-31", `{
		"till_read":"2500.00",
		"payments":{"eftpos":"1650.00","total_cash":"800.00"},
		"points_redeemed":"25.00",
		"customer_count":112,
		"floats":{
			"safe_float_open":{"$100":15},
			"safe_float_close":{"$20":50,"$50":10},
			"till_float_open":{"$20":25},
			"till_float_close_before_makeup":{"$20":30}
		}
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("save takings status %d: %s", rr.Code, rr.Body.String())
	}
	if v := decode(t, rr)["variance"]; v != "50.00" {
		t.Errorf("expected variance 50.00, got %v", v)
	}

	rr = post(t, h, "/api/takings/2023-08-31/settle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("settle status %d: %s", rr.Code, rr.Body.String())
	}

	rr = post(t, h, "/api/takings/2023-08-31", `{"till_read":"1.00"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 after settlement, got %d", rr.Code)
	}

	rec, err := ledger.Get(context.Background(), testutil.Date(2023, time.August, 31))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !takings.IsSettled(rec) {
		t.Fatal("expected stored record to be settled")
	}
	if got := rec.Takings().TillRead.StringFixed(2); got != "2500.00" {
		t.Errorf("settled till read changed to %s", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/2023/8", nil)
	cal := httptest.NewRecorder()
	h.ServeHTTP(cal, req)
	if cal.Code != http.StatusOK {
		t.Fatalf("calendar status %d: %s", cal.Code, cal.Body.String())
	}
	if !strings.Contains(cal.Body.String(), "2023-08-31") {
		t.Errorf("expected settled date in calendar, got %s", cal.Body.String())
	}
}

// TestSolverOutputMatchesBaseline checks the CSV rendering of the well
// stocked drawer allocation.
func TestSolverOutputMatchesBaseline(t *testing.T) {
	_, _, conf := newStack(t)

	alloc, err := solver.Solve(testutil.WellStockedDrawer(), conf.TillTarget())
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	expected := []string{
		`"denomination","count","value"`,
		`"5c","0","0.00"`,
		`"10c","0","0.00"`,
		`"20c","0","0.00"`,
		`"50c","0","0.00"`,
		`"$1","20","20.00"`,
		`"$2","40","80.00"`,
		`"$5","30","150.00"`,
		`"$10","10","100.00"`,
		`"$20","5","100.00"`,
		`"$50","1","50.00"`,
		`"$100","0","0.00"`,
	}
	got := strings.Split(strings.TrimSpace(output.AllocationCsvString(alloc)), "\n")
	if len(got) != len(expected) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(expected), len(got), strings.Join(got, "\n"))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("line %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}
