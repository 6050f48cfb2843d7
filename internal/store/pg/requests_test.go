package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"exgate.org/internal/exchange"
)

var requestRowColumns = []string{
	"id", "consumer_institution_id", "consumer_institution_name", "submitted_by",
	"services", "title", "description", "status", "conversation_active",
	"admin_note", "decision_date", "reason", "created_at", "updated_at",
}

func sampleRequestRow(id string, status exchange.Status, decided *time.Time) *sqlmock.Rows {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	var decision any
	if decided != nil {
		decision = *decided
	}
	return sqlmock.NewRows(requestRowColumns).AddRow(
		id, "inst-stats", "Bureau of Statistics", "user-1",
		[]byte(`["Business Registration"]`), "B-Reg Access", "", string(status), true,
		"", decision, "", now, now,
	)
}

func newMockRequests(t *testing.T) (*Requests, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db).Requests(), mock
}

func TestRequestsCreate(t *testing.T) {
	store, mock := newMockRequests(t)

	now := time.Now().UTC()
	mock.ExpectExec("insert into exchange_requests").
		WithArgs("req-1", "inst-stats", "Bureau of Statistics", "user-1",
			[]byte(`["Business Registration"]`), "B-Reg Access", "", "Submitted", true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Create(context.Background(), &exchange.Request{
		ID:                      "req-1",
		ConsumerInstitutionID:   "inst-stats",
		ConsumerInstitutionName: "Bureau of Statistics",
		SubmittedBy:             "user-1",
		Services:                []string{"Business Registration"},
		Title:                   "B-Reg Access",
		Status:                  exchange.StatusSubmitted,
		ConversationActive:      true,
		CreatedAt:               now,
		UpdatedAt:               now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRequestsCreateDuplicateID(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectExec("insert into exchange_requests").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Create(context.Background(), &exchange.Request{ID: "req-1"})
	if !errors.Is(err, exchange.ErrValidation) {
		t.Fatalf("expected ErrValidation on duplicate id, got %v", err)
	}
}

func TestRequestsGet(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("from exchange_requests").
		WithArgs("req-1").
		WillReturnRows(sampleRequestRow("req-1", exchange.StatusSubmitted, nil))

	req, err := store.Get(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if req.ID != "req-1" || req.Status != exchange.StatusSubmitted {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Services) != 1 || req.Services[0] != "Business Registration" {
		t.Fatalf("services not decoded: %v", req.Services)
	}
	if req.DecisionDate != nil {
		t.Fatal("decision date must be nil while submitted")
	}
}

func TestRequestsGetNotFound(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("from exchange_requests").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, exchange.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestsListWithStatusFilter(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("from exchange_requests(?s:.*)where status").
		WithArgs("Submitted").
		WillReturnRows(sampleRequestRow("req-1", exchange.StatusSubmitted, nil))

	status := exchange.StatusSubmitted
	out, err := store.List(context.Background(), &status)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].ID != "req-1" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRequestsDecide(t *testing.T) {
	store, mock := newMockRequests(t)

	decided := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("update exchange_requests").
		WithArgs("req-1", "Rejected", decided, "Insufficient documentation").
		WillReturnRows(sampleRequestRow("req-1", exchange.StatusRejected, &decided))

	req, err := store.Decide(context.Background(), "req-1", exchange.StatusRejected, "Insufficient documentation", decided)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if req.Status != exchange.StatusRejected {
		t.Fatalf("unexpected status: %q", req.Status)
	}
	if req.DecisionDate == nil || !req.DecisionDate.Equal(decided) {
		t.Fatalf("unexpected decision date: %v", req.DecisionDate)
	}
}

func TestRequestsDecideAlreadyDecided(t *testing.T) {
	store, mock := newMockRequests(t)

	// Guard matches zero rows, but the id exists: already decided.
	mock.ExpectQuery("update exchange_requests").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select 1 from exchange_requests").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	_, err := store.Decide(context.Background(), "req-1", exchange.StatusApproved, "", time.Now())
	if !errors.Is(err, exchange.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRequestsDecideNotFound(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("update exchange_requests").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select 1 from exchange_requests").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Decide(context.Background(), "missing", exchange.StatusApproved, "", time.Now())
	if !errors.Is(err, exchange.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestsSetConversation(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("set conversation_active").
		WithArgs("req-1", false).
		WillReturnRows(sampleRequestRow("req-1", exchange.StatusSubmitted, nil))

	if _, err := store.SetConversation(context.Background(), "req-1", false); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}
}

func TestRequestsSetAdminNote(t *testing.T) {
	store, mock := newMockRequests(t)

	mock.ExpectQuery("set admin_note").
		WithArgs("req-1", "follow up Friday").
		WillReturnRows(sampleRequestRow("req-1", exchange.StatusSubmitted, nil))

	if _, err := store.SetAdminNote(context.Background(), "req-1", "follow up Friday"); err != nil {
		t.Fatalf("SetAdminNote: %v", err)
	}

	mock.ExpectQuery("set admin_note").
		WithArgs("missing", "x").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.SetAdminNote(context.Background(), "missing", "x"); !errors.Is(err, exchange.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
