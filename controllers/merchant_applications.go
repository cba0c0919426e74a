package controllers

import (
	"net/http"
	"time"

	"franchise-dispatch-api/models"
	"franchise-dispatch-api/services"
	"franchise-dispatch-api/utils"

	"github.com/gin-gonic/gin"
)

/* ==========================
   Cancellations
   ========================== */

func GetCancelableCases(c *gin.Context) {
	rows, err := app.Cancellations.GetCancelableCases(c.Request.Context(), currentMerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

type cancelReportRequest struct {
	CaseID            string                    `json:"case_id" binding:"required"`
	ReasonCategory    string                    `json:"reason_category" binding:"required"`
	ReasonDetail      string                    `json:"reason_detail"`
	StructuredAnswers []models.StructuredAnswer `json:"structured_answers"`
	ContactEvidence   struct {
		PhoneCallCount int        `json:"phone_call_count"`
		SMSCount       int        `json:"sms_count"`
		LastAttemptAt  *time.Time `json:"last_attempt_at"`
		Notes          string     `json:"notes"`
	} `json:"contact_evidence"`
}

func SubmitCancelReport(c *gin.Context) {
	var req cancelReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	answers := make([]models.StructuredAnswer, 0, len(req.StructuredAnswers))
	for _, a := range req.StructuredAnswers {
		answers = append(answers, models.StructuredAnswer{
			Question: utils.SanitizeText(a.Question, 200),
			Answer:   utils.SanitizeText(a.Answer, 1000),
		})
	}

	application, err := app.Cancellations.SubmitCancelReport(c.Request.Context(), services.CancelReportInput{
		MerchantID:        currentMerchantID(c),
		CaseID:            utils.SanitizeInput(req.CaseID),
		ReasonCategory:    models.ReasonCategory(utils.SanitizeInput(req.ReasonCategory)),
		ReasonDetail:      utils.SanitizeText(req.ReasonDetail, 2000),
		StructuredAnswers: answers,
		ContactEvidence: models.ContactEvidence{
			PhoneCallCount: req.ContactEvidence.PhoneCallCount,
			SMSCount:       req.ContactEvidence.SMSCount,
			LastAttemptAt:  req.ContactEvidence.LastAttemptAt,
			Notes:          utils.SanitizeText(req.ContactEvidence.Notes, 2000),
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, application)
}

func GetMyCancellations(c *gin.Context) {
	rows, err := app.Cancellations.List(c.Request.Context(), services.ApplicationFilter{
		MerchantID: currentMerchantID(c),
		Status:     models.ApprovalStatus(c.Query("status")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

/* ==========================
   Extensions
   ========================== */

func GetExtendableCases(c *gin.Context) {
	rows, err := app.Extensions.GetEligibleCases(c.Request.Context(), currentMerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func SubmitExtension(c *gin.Context) {
	var req struct {
		CaseID               string    `json:"case_id" binding:"required"`
		ContactAchievedAt    time.Time `json:"contact_achieved_at" binding:"required"`
		PlannedAppointmentAt time.Time `json:"planned_appointment_at" binding:"required"`
		Justification        string    `json:"justification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ext, err := app.Extensions.SubmitExtension(c.Request.Context(), services.ExtensionInput{
		MerchantID:           currentMerchantID(c),
		CaseID:               utils.SanitizeInput(req.CaseID),
		ContactAchievedAt:    req.ContactAchievedAt,
		PlannedAppointmentAt: req.PlannedAppointmentAt,
		Justification:        utils.SanitizeText(req.Justification, 2000),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, ext)
}

func GetMyExtensions(c *gin.Context) {
	rows, err := app.Extensions.List(c.Request.Context(), services.ApplicationFilter{
		MerchantID: currentMerchantID(c),
		Status:     models.ApprovalStatus(c.Query("status")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}
