package controllers

import (
	"net/http"

	"franchise-dispatch-api/models"
	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

func applicationFilterFromQuery(c *gin.Context) services.ApplicationFilter {
	return services.ApplicationFilter{
		CaseID:     c.Query("case_id"),
		MerchantID: c.Query("merchant_id"),
		Status:     models.ApprovalStatus(c.Query("status")),
	}
}

func ListCancellations(c *gin.Context) {
	rows, err := app.Cancellations.List(c.Request.Context(), applicationFilterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func ApproveCancellation(c *gin.Context) {
	application, err := app.Approvals.ApproveCancelReport(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, application)
}

func RejectCancellation(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	application, err := app.Approvals.RejectCancelReport(c.Request.Context(), c.Param("id"), currentActor(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, application)
}

func ListExtensions(c *gin.Context) {
	rows, err := app.Extensions.List(c.Request.Context(), applicationFilterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func ApproveExtension(c *gin.Context) {
	application, err := app.Approvals.ApproveExtensionRequest(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, application)
}

func RejectExtension(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	application, err := app.Approvals.RejectExtensionRequest(c.Request.Context(), c.Param("id"), currentActor(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, application)
}
