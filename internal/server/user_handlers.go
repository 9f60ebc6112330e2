package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/aimerfeng/ChallengeHive/internal/creator"
	apierrors "github.com/aimerfeng/ChallengeHive/internal/errors"
	"github.com/aimerfeng/ChallengeHive/internal/middleware"
	"github.com/aimerfeng/ChallengeHive/internal/user"
	"github.com/gin-gonic/gin"
)

// bindOptionalJSON binds a body that clients may omit entirely
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleRegisterUser creates the caller's user record on first sign-in
func (s *APIServer) handleRegisterUser(c *gin.Context) {
	var req user.RegisterRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondValidation(c, err)
		return
	}

	created, err := s.users.Register(c.Request.Context(), middleware.GetEmailFromContext(c), &req)
	if err != nil {
		respondError(c, "register_user", err)
		return
	}
	respondData(c, http.StatusCreated, created)
}

// handleGetUserRole reads a role, defaulting to user for unknown emails
func (s *APIServer) handleGetUserRole(c *gin.Context) {
	email := c.Param("email")
	role, err := s.users.GetRole(c.Request.Context(), email)
	if err != nil {
		respondError(c, "get_user_role", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"email": email, "role": role})
}

func (s *APIServer) handleListUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		respondError(c, "list_users", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

// handleUpdateUserRole sets the role of the user named by ?email=
func (s *APIServer) handleUpdateUserRole(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		middleware.RespondWithError(c, apierrors.NewInvalidRequestError("email query parameter is required"))
		return
	}

	var req user.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	updated, err := s.users.UpdateRole(c.Request.Context(), email, req.Role, middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "update_user_role", err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

// handleRequestCreator files a pending creator request for the caller
func (s *APIServer) handleRequestCreator(c *gin.Context) {
	var req creator.RequestBody
	if err := bindOptionalJSON(c, &req); err != nil {
		respondValidation(c, err)
		return
	}

	created, err := s.creators.Request(c.Request.Context(), middleware.GetEmailFromContext(c), &req)
	if err != nil {
		respondError(c, "request_creator", err)
		return
	}
	respondData(c, http.StatusCreated, created)
}

func (s *APIServer) handleListCreatorRequests(c *gin.Context) {
	list, err := s.creators.List(c.Request.Context())
	if err != nil {
		respondError(c, "list_creator_requests", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

// handleDecideCreatorRequest approves or rejects a pending request
func (s *APIServer) handleDecideCreatorRequest(c *gin.Context) {
	var req creator.DecideBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	decided, err := s.creators.Decide(c.Request.Context(), &req, middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "decide_creator_request", err)
		return
	}
	respondData(c, http.StatusOK, decided)
}
