package portal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dod-ccpo/atat-sub000/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	Init(store.New(db, log), log)

	router := gin.New()
	RegisterRoutes(router)
	return router, mock
}

func TestCreatePortfolio(t *testing.T) {
	router, mock := newTestRouter(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO portfolios`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("p1", now, now))
	mock.ExpectExec(`INSERT INTO portfolio_state_machines`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/portfolios",
		strings.NewReader(`{"name": "JEDI Cloud", "description": "pilot"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"state":"UNSTARTED"`) {
		t.Fatalf("expected new portfolio in UNSTARTED, got %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePortfolioRejectsMissingName(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/portfolios",
		strings.NewReader(`{"description": "no name"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPortfolioNotFound(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`FROM portfolios p`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/portfolios/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetProvisioningStatus(t *testing.T) {
	router, mock := newTestRouter(t)

	now := time.Now()
	mock.ExpectQuery(`FROM portfolios p`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "owner_id", "csp_data",
			"claimed_until", "state", "updated_at",
			"created_at", "updated_at", "deleted_at",
		}).AddRow("p1", "JEDI Cloud", "", nil, []byte(`{"tenant_id": "t-1"}`),
			nil, "TENANT_CREATED", now, now, now, nil))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM job_failures`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entity_kind", "entity_id", "task_id", "error", "created_at",
		}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/portfolios/p1/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"state":"TENANT_CREATED"`) {
		t.Fatalf("expected state in status, got %s", body)
	}
	if !strings.Contains(body, `"funded":true`) {
		t.Fatalf("expected funded flag, got %s", body)
	}
	if !strings.Contains(body, `"tenant_id":"t-1"`) {
		t.Fatalf("expected csp_data in status, got %s", body)
	}
}
