package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/service"
)

// createUserRequest is the payload for POST /create-user.
type createUserRequest struct {
	Address string `json:"address"`
}

// createUserResponse carries the stored user plus their access token.
type createUserResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// topUsersResponse is the leaderboard payload. When the request carries an
// address parameter, the requester's own rank entry leads the list.
type topUsersResponse struct {
	Users []models.RankedUser `json:"users"`
}

// handleGetUser handles GET /api/v1/user/get-user/{address}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	address, err := service.NormalizeAddress(vars["address"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user, err := s.users.FindByAddress(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if user == nil {
		respondServiceError(w, apperrors.NewUserNotFoundError(address))
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleCreateUser handles POST /api/v1/user/create-user.
// Creation is idempotent: repeated calls for the same address return the
// stored user with a fresh token.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	address, err := service.NormalizeAddress(req.Address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	candidate := &models.User{
		Address:       address,
		Slug:          uuid.New().String(),
		Stage:         1,
		FirstTimeUser: true,
	}

	user, created, err := s.users.CreateIfAbsent(r.Context(), candidate)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := s.tokens.IssueToken(user.Address, user.Slug)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"address": user.Address,
		"created": created,
	}).Info("create user")

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, createUserResponse{User: user, Token: token})
}

// handleTopUsers handles GET /api/v1/user/top-users?limit=N&address=0x...
func (s *Server) handleTopUsers(w http.ResponseWriter, r *http.Request) {
	limit := s.config.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	users, err := s.rank.TopUsers(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if raw := r.URL.Query().Get("address"); raw != "" {
		address, err := service.NormalizeAddress(raw)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		requester, err := s.rank.RankOf(r.Context(), address)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		entry := models.RankedUser{
			Rank:       int(requester.Rank),
			Address:    requester.Address,
			KleoPoints: requester.KleoPoints,
		}
		users = append([]models.RankedUser{entry}, users...)
	}

	respondJSON(w, http.StatusOK, topUsersResponse{Users: users})
}

// handleGetRank handles GET /api/v1/user/rank/{address}
func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	address, err := service.NormalizeAddress(vars["address"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	rank, err := s.rank.RankOf(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rank)
}

// handleGetReferrals handles GET /api/v1/user/referrals/{address}
func (s *Server) handleGetReferrals(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	address, err := service.NormalizeAddress(vars["address"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	referrals, err := s.referrals.Referrals(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"referrals": referrals,
	})
}

// handleGetUserGraph handles GET /api/v1/user/get-user-graph/{address}
func (s *Server) handleGetUserGraph(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	address, err := service.NormalizeAddress(vars["address"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	graph, err := s.users.GetActivityJSON(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if graph == nil {
		graph = map[string]interface{}{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":       address,
		"activity_json": graph,
	})
}
