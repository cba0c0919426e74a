package controllers

import (
	"errors"
	"net/http"
	"time"

	"franchise-dispatch-api/models"
	"franchise-dispatch-api/services"
	"franchise-dispatch-api/utils"

	"github.com/gin-gonic/gin"
)

func CreateCase(c *gin.Context) {
	var req struct {
		CaseID          string    `json:"case_id" binding:"required"`
		CustomerName    string    `json:"customer_name" binding:"required"`
		CustomerPhone   string    `json:"customer_phone"`
		CustomerAddress string    `json:"customer_address"`
		IntakeAt        time.Time `json:"intake_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	created, err := app.Dispatcher.CreateCase(c.Request.Context(), services.CaseInput{
		CaseID:          utils.SanitizeInput(req.CaseID),
		CustomerName:    utils.SanitizeText(req.CustomerName, 200),
		CustomerPhone:   utils.SanitizeText(req.CustomerPhone, 40),
		CustomerAddress: utils.SanitizeText(req.CustomerAddress, 500),
		IntakeAt:        req.IntakeAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, created)
}

func CreateMerchant(c *gin.Context) {
	var req struct {
		MerchantID string `json:"merchant_id" binding:"required"`
		Name       string `json:"name" binding:"required"`
		Email      string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if req.Email != "" && !utils.ValidateEmail(req.Email) {
		respondBadRequest(c, "invalid email")
		return
	}
	m, err := app.Dispatcher.CreateMerchant(c.Request.Context(), utils.SanitizeInput(req.MerchantID), utils.SanitizeText(req.Name, 200), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, m)
}

type merchantListRequest struct {
	MerchantIDs []string `json:"merchant_ids" binding:"required,min=1"`
}

// DispatchCase delivers the case to the listed merchants now. Partial
// failures are reported next to the records that were created.
func DispatchCase(c *gin.Context) {
	var req merchantListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	created, err := app.Dispatcher.Dispatch(c.Request.Context(), c.Param("id"), req.MerchantIDs)
	if err != nil && len(created) == 0 {
		respondError(c, unwrapSingle(err))
		return
	}
	data := gin.H{"records": created}
	if err != nil {
		data["errors"] = err.Error()
	}
	respondOK(c, http.StatusCreated, data)
}

// unwrapSingle returns the only error of a one-element join so that it keeps
// its classification.
func unwrapSingle(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) == 1 {
			return errs[0]
		}
	}
	return err
}

func ScheduleRedelivery(c *gin.Context) {
	var req struct {
		RedeliverAt time.Time `json:"redeliver_at" binding:"required"`
		MerchantIDs []string  `json:"merchant_ids" binding:"required,min=1"`
		Note        string    `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	updated, err := app.Dispatcher.ScheduleRedelivery(c.Request.Context(), c.Param("id"), req.RedeliverAt, models.RedeliveryPayload{
		MerchantIDs: req.MerchantIDs,
		Note:        utils.SanitizeText(req.Note, 500),
		ScheduledBy: currentActor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, updated)
}

func ArchiveCase(c *gin.Context) {
	archived, err := app.Ledger.ArchiveCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, archived)
}

func MarkDeliveryOutcome(c *gin.Context) {
	var req struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	rec, err := app.Ledger.MarkOutcome(c.Request.Context(), c.Param("caseId"), c.Param("merchantId"),
		models.DeliveryStatus(req.Outcome), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rec)
}

func RunSweep(c *gin.Context) {
	summary, err := app.Sweeps.RunByName(c.Request.Context(), c.Param("name"), "admin:"+currentActor(c))
	switch {
	case errors.Is(err, services.ErrUnknownSweep):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"kind": "NotFound", "message": err.Error()}})
		return
	case errors.Is(err, services.ErrSweepAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": gin.H{"kind": "Conflict", "message": err.Error()}})
		return
	case err != nil:
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, summary)
}
