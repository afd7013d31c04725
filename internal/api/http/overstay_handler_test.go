package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/security"
)

type mockOverstayService struct {
	mock.Mock
}

func (m *mockOverstayService) Approve(ctx context.Context, managerID int32, overstayID string, amountCents int32, notes string) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, managerID, overstayID, amountCents, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *mockOverstayService) Waive(ctx context.Context, managerID int32, overstayID string, reason, notes string) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, managerID, overstayID, reason, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *mockOverstayService) Charge(ctx context.Context, managerID int32, overstayID string) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, managerID, overstayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *mockOverstayService) Resolve(ctx context.Context, managerID int32, overstayID string, resolutionType domain.ResolutionType, notes string) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, managerID, overstayID, resolutionType, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *mockOverstayService) Get(ctx context.Context, overstayID string) (*domain.OverstayRecord, []domain.ChargeAttempt, []domain.OverstayEvent, error) {
	args := m.Called(ctx, overstayID)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Get(1).([]domain.ChargeAttempt), args.Get(2).([]domain.OverstayEvent), args.Error(3)
}
func (m *mockOverstayService) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	args := m.Called(ctx, status, page, pageSize)
	return args.Get(0).([]domain.OverstayRecord), args.Get(1).(int32), args.Error(2)
}
func (m *mockOverstayService) GetSummary(ctx context.Context) (*domain.OverstaySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstaySummary), args.Error(1)
}

const testSecret = "test-secret-at-least-32-characters-long"

func setupRouter(svc *mockOverstayService) (*mux.Router, string) {
	tokenManager := security.NewTokenManager(testSecret)
	token, _ := tokenManager.GenerateToken(100, "manager@example.com", []string{security.RoleManager}, []int32{7})

	router := mux.NewRouter()
	RegisterOverstayRoutes(router, svc, tokenManager)
	return router, token
}

func doRequest(router *mux.Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestOverstayHandler_Approve(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	rec := &domain.OverstayRecord{ID: "ovs-1", Status: domain.OverstayStatusChargeSucceeded}
	svc.On("Approve", mock.Anything, int32(100), "ovs-1", int32(10000), "fair").Return(rec, nil)

	rr := doRequest(router, "POST", "/api/v1/overstays/ovs-1/approve", token,
		approveRequest{AmountCents: 10000, Notes: "fair"})

	assert.Equal(t, http.StatusOK, rr.Code)
	var got domain.OverstayRecord
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, domain.OverstayStatusChargeSucceeded, got.Status)
	svc.AssertExpectations(t)
}

func TestOverstayHandler_Approve_ValidationErrorMapsTo400(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	svc.On("Approve", mock.Anything, int32(100), "ovs-1", int32(99999), "").
		Return(nil, domain.NewValidationError("amount_cents", "exceeds calculated penalty"))

	rr := doRequest(router, "POST", "/api/v1/overstays/ovs-1/approve", token,
		approveRequest{AmountCents: 99999})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOverstayHandler_Waive_TransitionErrorMapsTo409(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	svc.On("Waive", mock.Anything, int32(100), "ovs-1", "goodwill", "").
		Return(nil, &domain.InvalidTransitionError{Action: "waive", From: domain.OverstayStatusChargeSucceeded})

	rr := doRequest(router, "POST", "/api/v1/overstays/ovs-1/waive", token,
		waiveRequest{Reason: "goodwill"})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOverstayHandler_Get_NotFoundMapsTo404(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	svc.On("Get", mock.Anything, "missing").Return(nil, nil, nil, domain.ErrNotFound)

	rr := doRequest(router, "GET", "/api/v1/overstays/missing", token, nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOverstayHandler_ConcurrentUpdateMapsTo409(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	svc.On("Charge", mock.Anything, int32(100), "ovs-1").Return(nil, domain.ErrConflict)

	rr := doRequest(router, "POST", "/api/v1/overstays/ovs-1/charge", token, nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOverstayHandler_List(t *testing.T) {
	svc := new(mockOverstayService)
	router, token := setupRouter(svc)

	svc.On("List", mock.Anything, "PENDING_REVIEW", int32(2), int32(10)).
		Return([]domain.OverstayRecord{{ID: "ovs-1"}}, int32(11), nil)

	rr := doRequest(router, "GET", "/api/v1/overstays?status=PENDING_REVIEW&page=2&page_size=10", token, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got overstayListResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int32(11), got.TotalCount)
	assert.Len(t, got.Overstays, 1)
}

func TestOverstayHandler_RequiresAuth(t *testing.T) {
	svc := new(mockOverstayService)
	router, _ := setupRouter(svc)

	rr := doRequest(router, "GET", "/api/v1/overstays", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOverstayHandler_RequiresManagerRole(t *testing.T) {
	svc := new(mockOverstayService)
	router, _ := setupRouter(svc)

	tokenManager := security.NewTokenManager(testSecret)
	chefToken, _ := tokenManager.GenerateToken(9, "chef@example.com", []string{"chef"}, nil)

	rr := doRequest(router, "GET", "/api/v1/overstays", chefToken, nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
