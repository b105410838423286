package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stridehq/stride/internal/apply"
	"github.com/stridehq/stride/internal/coach"
	"github.com/stridehq/stride/internal/patch"
	"github.com/stridehq/stride/internal/plan"
	"github.com/stridehq/stride/internal/token"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/plans/:id", handleGetPlan(opts))
	router.POST("/api/plans/:id/proposals", handleGenerate(opts))
	router.POST("/api/plans/:id/apply", handleApply(opts))
}

func handleGetPlan(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := plan.Load(opts.DB, c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"plan":    snap,
			"summary": plan.Summarize(snap),
		})
	}
}

// generateRequest is the body of POST /api/plans/:id/proposals.
type generateRequest struct {
	Message string `json:"message" binding:"required"`
}

func handleGenerate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}

		snap, err := plan.Load(opts.DB, c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := opts.Generator.Generate(c.Request.Context(), snap, req.Message)
		if err != nil {
			status := http.StatusBadRequest
			msg := err.Error()
			switch {
			case errors.Is(err, coach.ErrAdvisor):
				status = http.StatusBadGateway
			case errors.Is(err, coach.ErrInvalidProposal):
				msg = "invalid proposal format"
			case errors.Is(err, coach.ErrGuardrail):
				// err carries the specific rejection reason.
			default:
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}

		if result.Proposal.RequiresClarification && opts.Notify != nil {
			opts.Notify.Send(c.Request.Context(), fmt.Sprintf(
				"Stride: a major proposal for plan %q needs your confirmation: %s",
				snap.Name, result.Proposal.ClarificationPrompt))
		}

		c.JSON(http.StatusOK, gin.H{
			"proposal":    result.Proposal,
			"score":       result.Report.Score,
			"diagnostics": result.Report.Diagnostics,
			"plan":        plan.Summarize(snap),
		})
	}
}

// applyRequest is the body of POST /api/plans/:id/apply. The proposal must
// be exactly as previously returned; hand edits fail token verification.
type applyRequest struct {
	Proposal              json.RawMessage `json:"proposal" binding:"required"`
	ChangeIndexes         []int           `json:"changeIndexes"`
	ClarificationResponse string          `json:"clarificationResponse"`
}

func handleApply(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proposal is required"})
			return
		}

		var p patch.Proposal
		if err := json.Unmarshal(req.Proposal, &p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal format"})
			return
		}

		planID := c.Param("id")
		result, err := opts.Applier.Apply(planID, &p, apply.Options{
			ChangeIndexes:         req.ChangeIndexes,
			ClarificationResponse: req.ClarificationResponse,
		})
		if err != nil {
			c.JSON(applyStatus(err), gin.H{"error": applyMessage(err)})
			return
		}

		snap, err := plan.Load(opts.DB, planID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if opts.Notify != nil {
			opts.Notify.Send(c.Request.Context(), fmt.Sprintf(
				"Stride: %s on plan %q", result.Summary, snap.Name))
		}

		c.JSON(http.StatusOK, gin.H{
			"applied":       true,
			"appliedCount":  result.AppliedCount,
			"extendedWeeks": result.ExtendedWeeks,
			"summary":       result.Summary,
			"plan":          snap,
		})
	}
}

// applyStatus maps apply failures onto HTTP statuses: 400 for "fix your
// input" and "nothing to do", 409 for "regenerate and try again", 404 for
// unknown plans.
func applyStatus(err error) int {
	switch {
	case errors.Is(err, apply.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, token.ErrInvalid),
		errors.Is(err, apply.ErrStateChanged),
		errors.Is(err, apply.ErrReferential),
		errors.Is(err, apply.ErrLockViolation):
		return http.StatusConflict
	case errors.Is(err, apply.ErrEmptyChangeSet),
		errors.Is(err, apply.ErrClarificationRequired),
		errors.Is(err, apply.ErrBadChangeIndex),
		errors.Is(err, apply.ErrGuardrail):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func applyMessage(err error) string {
	switch {
	case errors.Is(err, apply.ErrEmptyChangeSet):
		return "No changes to apply"
	case errors.Is(err, apply.ErrStateChanged):
		return "plan state changed, regenerate the proposal"
	}
	return err.Error()
}
