package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"site-server/internal/billing"
	"site-server/internal/types"
)

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, types.PlansResponse{Currency: billing.Currency, Plans: billing.Plans()})
}

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cs, err := s.billing.CreateCheckoutSession(r.Context(), req.PlanID, req.BillingCycle)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, cs)
	case errors.Is(err, billing.ErrInvalidPlan):
		s.writeError(w, http.StatusBadRequest, "Invalid plan selected")
	case errors.Is(err, billing.ErrInvalidBillingCycle):
		s.writeError(w, http.StatusBadRequest, "Invalid billing cycle selected")
	case errors.Is(err, billing.ErrNotConfigured):
		s.writeError(w, http.StatusInternalServerError, "Payment provider is not configured")
	default:
		s.writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
	}
}

func (s *Server) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	v, err := s.billing.VerifySession(r.Context(), r.URL.Query().Get("session_id"))
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, types.VerifyResponse{Success: true, Verification: *v})
	case errors.Is(err, billing.ErrMissingSessionID):
		s.writeError(w, http.StatusBadRequest, "Session ID is required")
	default:
		s.writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{
			Error:   "Failed to verify session",
			Details: err.Error(),
		})
	}
}
