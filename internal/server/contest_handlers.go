package server

import (
	"net/http"

	"github.com/aimerfeng/ChallengeHive/internal/contest"
	"github.com/aimerfeng/ChallengeHive/internal/middleware"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/submission"
	"github.com/gin-gonic/gin"
)

// handleCreateContest stores a pending contest owned by the caller
func (s *APIServer) handleCreateContest(c *gin.Context) {
	var req contest.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	created, err := s.contests.Create(c.Request.Context(), middleware.GetEmailFromContext(c), &req)
	if err != nil {
		respondError(c, "create_contest", err)
		return
	}
	respondData(c, http.StatusCreated, created)
}

func (s *APIServer) handleListMyContests(c *gin.Context) {
	list, err := s.contests.ListMine(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "list_my_contests", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

// handleGetContestForEdit returns the contest to prefill the edit form; owner or admin only
func (s *APIServer) handleGetContestForEdit(c *gin.Context) {
	found, err := s.contests.GetForEdit(c.Request.Context(), c.Param("id"), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "get_contest_for_edit", err)
		return
	}
	respondData(c, http.StatusOK, found)
}

// handleUpdateContest merge-patches the editable fields
func (s *APIServer) handleUpdateContest(c *gin.Context) {
	var patch models.ContestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondValidation(c, err)
		return
	}

	updated, err := s.contests.Update(c.Request.Context(), c.Param("id"), middleware.GetEmailFromContext(c), patch)
	if err != nil {
		respondError(c, "update_contest", err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

func (s *APIServer) handleListAllContests(c *gin.Context) {
	list, err := s.contests.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, "list_all_contests", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

// handleUpdateContestStatus approves or rejects a pending contest
func (s *APIServer) handleUpdateContestStatus(c *gin.Context) {
	var req contest.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	updated, err := s.contests.UpdateStatus(c.Request.Context(), req.ID, req.Status, middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "update_contest_status", err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

func (s *APIServer) handleDeleteContestAsAdmin(c *gin.Context) {
	id := c.Param("id")
	if err := s.contests.DeleteAsAdmin(c.Request.Context(), id); err != nil {
		respondError(c, "delete_contest_admin", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (s *APIServer) handleDeleteOwnContest(c *gin.Context) {
	id := c.Param("id")
	if err := s.contests.DeleteAsCreator(c.Request.Context(), id, middleware.GetEmailFromContext(c)); err != nil {
		respondError(c, "delete_contest_creator", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (s *APIServer) handleListApprovedContests(c *gin.Context) {
	list, err := s.contests.ListApproved(c.Request.Context())
	if err != nil {
		respondError(c, "list_approved_contests", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

func (s *APIServer) handleGetContest(c *gin.Context) {
	found, err := s.contests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get_contest", err)
		return
	}
	respondData(c, http.StatusOK, found)
}

// handleSubmitTask appends a submission to the caller's participant entry
func (s *APIServer) handleSubmitTask(c *gin.Context) {
	var req submission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	sub, err := s.tasks.Record(c.Request.Context(), c.Param("id"), middleware.GetEmailFromContext(c), &req)
	if err != nil {
		respondError(c, "submit_task", err)
		return
	}
	respondData(c, http.StatusOK, sub)
}

// handleDeclareWinner sets the contest winner; owner or admin only
func (s *APIServer) handleDeclareWinner(c *gin.Context) {
	var req contest.WinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	updated, err := s.contests.DeclareWinner(c.Request.Context(), c.Param("id"), middleware.GetEmailFromContext(c), req.Email)
	if err != nil {
		respondError(c, "declare_winner", err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

func (s *APIServer) handleListParticipated(c *gin.Context) {
	list, err := s.contests.ListParticipated(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "list_participated", err)
		return
	}
	respondData(c, http.StatusOK, list)
}

func (s *APIServer) handleListWon(c *gin.Context) {
	list, err := s.contests.ListWon(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, "list_won", err)
		return
	}
	respondData(c, http.StatusOK, list)
}
