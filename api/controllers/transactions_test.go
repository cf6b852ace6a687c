package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/gembotlabs/gembot-backend/api/middleware"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

type fakeLedger struct {
	forMember   []models.Transaction
	lastTypes   []enums.TransactionType
	lastLimit   int
	listAll     []models.Transaction
	listTotal   int64
	lastOffset  int
	globalTypes []enums.TransactionType
}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordTransactionInput) (*models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) ListForMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error) {
	f.lastLimit = limit
	f.lastTypes = types
	return f.forMember, nil
}

func (f *fakeLedger) List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error) {
	f.lastOffset = offset
	f.lastLimit = limit
	f.globalTypes = types
	return f.listAll, f.listTotal, nil
}

func (f *fakeLedger) TransitionPendingGrace(ctx context.Context, memberID uuid.UUID, to enums.TransactionStatus) (int64, error) {
	return 0, nil
}

func memberRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := middleware.WithActor(req.Context(), uuid.NewString(), string(enums.ActorRoleMember))
	return req.WithContext(ctx)
}

func TestMemberTransactionsAppliesTypeFilter(t *testing.T) {
	svc := &fakeLedger{forMember: []models.Transaction{{ID: uuid.New()}}}
	handler := MemberTransactions(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, memberRequest(http.MethodGet, "/api/v1/transactions?type=withdrawal,level_income&limit=25"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastLimit != 25 {
		t.Fatalf("limit = %d, want 25", svc.lastLimit)
	}
	if len(svc.lastTypes) != 2 ||
		svc.lastTypes[0] != enums.TransactionTypeWithdrawal ||
		svc.lastTypes[1] != enums.TransactionTypeLevelIncome {
		t.Fatalf("unexpected type filter %v", svc.lastTypes)
	}
}

func TestMemberTransactionsRejectsUnknownType(t *testing.T) {
	svc := &fakeLedger{}
	handler := MemberTransactions(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, memberRequest(http.MethodGet, "/api/v1/transactions?type=store_purchase"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMemberTransactionsRequiresActor(t *testing.T) {
	handler := MemberTransactions(&fakeLedger{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminTransactionListPaginates(t *testing.T) {
	svc := &fakeLedger{
		listAll:   []models.Transaction{{ID: uuid.New()}, {ID: uuid.New()}},
		listTotal: 41,
	}
	handler := AdminTransactionList(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/transactions?offset=20&limit=10&type=renewal", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastOffset != 20 || svc.lastLimit != 10 {
		t.Fatalf("pagination = (%d,%d), want (20,10)", svc.lastOffset, svc.lastLimit)
	}
	if len(svc.globalTypes) != 1 || svc.globalTypes[0] != enums.TransactionTypeRenewal {
		t.Fatalf("unexpected type filter %v", svc.globalTypes)
	}

	var payload struct {
		Data struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Data.Total != 41 {
		t.Fatalf("total = %d, want 41", payload.Data.Total)
	}
}
