package controllers

import (
	"net/http"
	"time"

	"franchise-dispatch-api/services"
	"franchise-dispatch-api/utils"

	"github.com/gin-gonic/gin"
)

// GetMyDeliveries lists the merchant's delivery records, optionally narrowed
// by ?category=pending|active|closed.
func GetMyDeliveries(c *gin.Context) {
	category := services.QueryCategory(c.Query("category"))
	rows, err := app.Ledger.Query(c.Request.Context(), currentMerchantID(c), category)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func UpdateDeliveryStatus(c *gin.Context) {
	var req struct {
		Status        string     `json:"status" binding:"required"`
		AppointmentAt *time.Time `json:"appointment_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	status, err := utils.ParseDetailStatus(req.Status)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	rec, err := app.Ledger.UpdateDetailStatus(c.Request.Context(), services.UpdateDetailStatusInput{
		CaseID:        c.Param("caseId"),
		MerchantID:    currentMerchantID(c),
		Status:        status,
		AppointmentAt: req.AppointmentAt,
		Actor:         currentActor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rec)
}

func RecordContact(c *gin.Context) {
	var req struct {
		Kind string    `json:"kind" binding:"required"`
		At   time.Time `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	rec, err := app.Ledger.RecordContact(c.Request.Context(), c.Param("caseId"), currentMerchantID(c),
		services.ContactKind(req.Kind), req.At, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rec)
}
