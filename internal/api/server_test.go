package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("client-a") {
		t.Error("fourth request inside the window should be rejected")
	}
	if !rl.Allow("client-b") {
		t.Error("other clients must not share the budget")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("client-a") {
		t.Error("request after the window should be allowed again")
	}
}

func TestRenderError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{log: logging.Nop()}

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &ledger.ValidationError{Field: "type", Reason: "unknown"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &ledger.NotFoundError{Kind: "transaction", ID: "x"}, http.StatusNotFound, "NOT_FOUND"},
		{"period closed", &ledger.PeriodClosedError{Year: 2025, Month: 6}, http.StatusConflict, "PERIOD_CLOSED"},
		{"already closed", &ledger.AlreadyClosedError{Year: 2025, Month: 6}, http.StatusConflict, "PERIOD_ALREADY_CLOSED"},
		{"not closed", &ledger.NotClosedError{Year: 2025, Month: 6}, http.StatusConflict, "PERIOD_NOT_CLOSED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			s.renderError(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tc.wantCode)
			}
		})
	}
}
