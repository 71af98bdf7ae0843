package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrol-pay-api/internal/service"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/response"
)

type reconcileService interface {
	Run(ctx context.Context, opts service.RunOptions) (service.StatusCode, error)
}

// ReconcileHandler exposes an on-demand trigger for the expiry
// reconciliation sweeps, alongside the scheduled standalone binary.
type ReconcileHandler struct {
	service reconcileService
}

// NewReconcileHandler builds a new handler.
func NewReconcileHandler(service reconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: service}
}

type reconcileResult struct {
	Status string `json:"status"`
	Code   int    `json:"code"`
}

// Run godoc
// @Summary Run the enrolment expiry reconciliation
// @Tags Reconcile
// @Produce json
// @Param course_id query string false "Limit the run to one course"
// @Param verbose query bool false "Emit per-enrolment trace lines"
// @Success 200 {object} response.Envelope
// @Router /reconcile [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	verbose, _ := strconv.ParseBool(c.DefaultQuery("verbose", "false"))
	opts := service.RunOptions{
		CourseID: c.Query("course_id"),
		Verbose:  verbose,
	}

	code, err := h.service.Run(c.Request.Context(), opts)
	switch code {
	case service.StatusOK:
		response.JSON(c, http.StatusOK, reconcileResult{Status: "OK", Code: int(code)}, nil)
	case service.StatusDisabled:
		response.JSON(c, http.StatusOK, reconcileResult{Status: "DISABLED", Code: int(code)}, nil)
	default:
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation finished with failures"))
	}
}
