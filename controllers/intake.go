package controllers

import (
	"net/http"

	"franchise-dispatch-api/utils"

	"github.com/gin-gonic/gin"
)

// StartIntakeSession is called when the customer opens the intake form.
func StartIntakeSession(c *gin.Context) {
	var req struct {
		CustomerLabel string `json:"customer_label"`
		Source        string `json:"source"`
	}
	_ = c.ShouldBindJSON(&req)

	session, err := app.Intake.Start(c.Request.Context(), utils.SanitizeText(req.CustomerLabel, 120), utils.SanitizeText(req.Source, 60))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, session)
}

func IntakeHeartbeat(c *gin.Context) {
	session, err := app.Intake.Heartbeat(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, session)
}

func CompleteIntakeSession(c *gin.Context) {
	session, err := app.Intake.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, session)
}
