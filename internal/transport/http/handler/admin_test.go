package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edge-rewards/internal/application/rewards"
	"github.com/edge-rewards/internal/domain"
)

func TestListParked(t *testing.T) {
	svc := new(mockRewardsSvc)
	svc.On("ListParked", mock.Anything, 0).Return([]domain.Claim{{ClaimID: "c1"}, {ClaimID: "c2"}}, nil)
	svc.On("ListParked", mock.Anything, 5).Return(nil, nil)
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.ListParked(rr, httptest.NewRequest(http.MethodGet, "/api/rewards/admin/claims/parked", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var env ParkedClaimsEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, 2, env.Count)
	assert.Equal(t, "c1", env.Claims[0].ClaimID)

	rr = httptest.NewRecorder()
	h.ListParked(rr, httptest.NewRequest(http.MethodGet, "/api/rewards/admin/claims/parked?limit=5", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0,"claims":[]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ListParked(rr, httptest.NewRequest(http.MethodGet, "/api/rewards/admin/claims/parked?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertExpectations(t)
}

func TestListParked_HidesSecrets(t *testing.T) {
	svc := new(mockRewardsSvc)
	svc.On("ListParked", mock.Anything, 0).Return([]domain.Claim{{ClaimID: "c1", VerificationCode: "1234", VerificationToken: "secret-token"}}, nil)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).ListParked(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, rr.Body.String(), "secret-token")
	assert.NotContains(t, rr.Body.String(), "1234")
}

func TestRetryPayout(t *testing.T) {
	svc := new(mockRewardsSvc)
	svc.On("RetryPayout", mock.Anything, "c1").Return(&rewards.ConfirmResult{Message: "Email verified, reward is being sent"}, nil)
	svc.On("RetryPayout", mock.Anything, "c2").Return(nil, domain.NewError(domain.ErrConflict, "Payout may already have been submitted; check the provider before retrying"))
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.RetryPayout(rr, withChiID(httptest.NewRequest(http.MethodPost, "/", nil), "c1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Email verified, reward is being sent"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.RetryPayout(rr, withChiID(httptest.NewRequest(http.MethodPost, "/", nil), "c2"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSetCampaignActive(t *testing.T) {
	svc := new(mockRewardsSvc)
	svc.On("SetCampaignActive", mock.Anything, "btc-2026", false).Return(nil)
	svc.On("SetCampaignActive", mock.Anything, "nope", true).Return(domain.NewError(domain.ErrNotFound, "Campaign not found"))
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.SetCampaignActive(rr, withChiID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"active":false}`)), "btc-2026"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.SetCampaignActive(rr, withChiID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"active":true}`)), "nope"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.SetCampaignActive(rr, withChiID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{}`)), "btc-2026"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertExpectations(t)
}
