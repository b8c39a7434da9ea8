package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

const maxDaysRange = 366

type ReportHandler struct {
	svc *services.ReportService
}

func NewReportHandler(svc *services.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me/report", h.GetFocusReport)
}

// GetFocusReport godoc
// @Summary      Focus minutes over a date range
// @Tags         report
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query  string  false  "YYYY-MM-DD, defaults to six days before end_date"
// @Param        end_date    query  string  false  "YYYY-MM-DD, defaults to today"
// @Param        tz          query  string  false  "IANA time zone, defaults to UTC"
// @Success      200  {object}  domain.FocusReport
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/me/report [get]
func (h *ReportHandler) GetFocusReport(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tz"})
			return
		}
	}

	var endDate, startDate time.Time
	var err error

	if s := c.Query("end_date"); s == "" {
		endDate = time.Now().In(loc)
	} else if endDate, err = time.ParseInLocation("2006-01-02", s, loc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, expected YYYY-MM-DD"})
		return
	}

	if s := c.Query("start_date"); s == "" {
		startDate = endDate.AddDate(0, 0, -6)
	} else if startDate, err = time.ParseInLocation("2006-01-02", s, loc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date format, expected YYYY-MM-DD"})
		return
	}

	if startDate.After(endDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date cannot be after end_date"})
		return
	}
	if endDate.Sub(startDate).Hours()/24 > maxDaysRange {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date range too large, max 1 year allowed"})
		return
	}

	report, err := h.svc.GetFocusReport(c.Request.Context(), domain.StatsInput{
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		Location:  loc,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
