package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/votes"
)

type VoteHandler struct {
	ledger *votes.Ledger
	log    *logger.Logger
}

func NewVoteHandler(ledger *votes.Ledger, log *logger.Logger) *VoteHandler {
	return &VoteHandler{ledger: ledger, log: log.With("handler", "VoteHandler")}
}

type castVoteRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	ContentID   int    `json:"content_id" binding:"required"`
	VoteType    int    `json:"vote_type"`
}

// voteError maps ledger validation errors to 400 and everything else to 500.
func (h *VoteHandler) voteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, votes.ErrInvalidContentKind),
		errors.Is(err, votes.ErrInvalidDirection),
		errors.Is(err, votes.ErrInvalidContentID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, votes.ErrInvalidVoter):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	case errors.Is(err, votes.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": votes.ErrConflict.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process vote"})
	}
}

func targetParams(c *gin.Context) (votes.Kind, int, error) {
	kind, err := votes.ParseKind(c.Param("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return "", 0, votes.ErrInvalidContentID
	}
	return kind, id, nil
}

// Cast toggles, flips or records the caller's vote.
func (h *VoteHandler) Cast(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input castVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_type and content_id are required"})
		return
	}
	kind, err := votes.ParseKind(input.ContentType)
	if err != nil {
		h.voteError(c, err)
		return
	}
	dir, err := votes.ParseDirection(input.VoteType)
	if err != nil {
		h.voteError(c, err)
		return
	}

	res, err := h.ledger.Cast(c.Request.Context(), userID, kind, input.ContentID, dir)
	if err != nil {
		h.voteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Withdraw clears the caller's vote and returns the fresh counts.
func (h *VoteHandler) Withdraw(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	kind, id, err := targetParams(c)
	if err != nil {
		h.voteError(c, err)
		return
	}

	tally, err := h.ledger.Withdraw(c.Request.Context(), userID, kind, id)
	if err != nil {
		h.voteError(c, err)
		return
	}
	c.JSON(http.StatusOK, votes.CastResult{Tally: tally, UserVote: votes.Neutral})
}

// GetCounts returns a target's tally, plus the caller's userVote when the
// request is authenticated.
func (h *VoteHandler) GetCounts(c *gin.Context) {
	kind, id, err := targetParams(c)
	if err != nil {
		h.voteError(c, err)
		return
	}
	tally, err := h.ledger.Aggregate(c.Request.Context(), kind, id)
	if err != nil {
		h.voteError(c, err)
		return
	}
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusOK, tally)
		return
	}
	dir, err := h.ledger.UserDirection(c.Request.Context(), userID, kind, id)
	if err != nil {
		h.voteError(c, err)
		return
	}
	c.JSON(http.StatusOK, votes.CastResult{Tally: tally, UserVote: dir})
}

func (h *VoteHandler) GetUserVote(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	kind, id, err := targetParams(c)
	if err != nil {
		h.voteError(c, err)
		return
	}
	dir, err := h.ledger.UserDirection(c.Request.Context(), userID, kind, id)
	if err != nil {
		h.voteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userVote": dir})
}
