package controllers

import (
	"fundametrics/services"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

type ExportControllerI interface {
	ExportXLSX(ctx *gin.Context)
}

type exportController struct{}

var ExportController ExportControllerI = &exportController{}

// ExportXLSX writes a company's computed workbook to Cloudinary and
// returns the download link.
func (e *exportController) ExportXLSX(ctx *gin.Context) {
	companyName := ctx.Query("company")
	if companyName == "" {
		ctx.JSON(400, gin.H{"error": "Company name is required"})
		return
	}

	var sentryCtx = ctx.Request.Context()
	if hub := sentry.GetHubFromContext(sentryCtx); hub == nil {
		sentryCtx = sentry.SetHubOnContext(sentryCtx, sentry.CurrentHub().Clone())
	}

	url, err := services.ExportService.ExportSnapshotXLSX(ctx, companyName, sentryCtx)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"company": companyName,
		"url":     url,
	})
}
