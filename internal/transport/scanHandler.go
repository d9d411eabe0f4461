package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/service"
)

type ScanHandler struct {
	scanService service.ScanService
}

func NewScanHandler(scanService service.ScanService) *ScanHandler {
	return &ScanHandler{scanService: scanService}
}

var errMissingRange = errors.New("start and end are required")

// BackfillRequest takes civil dates as "YYYY-MM-DD".
type BackfillRequest struct {
	Start dates.Date `json:"start"`
	End   dates.Date `json:"end"`
}

func (h *ScanHandler) RunDaily(c *gin.Context) {
	res, err := h.scanService.RunDaily(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ScanHandler) Backfill(c *gin.Context) {
	var req BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Start.IsZero() || req.End.IsZero() {
		badRequest(c, errMissingRange)
		return
	}

	res, err := h.scanService.Backfill(c.Request.Context(), req.Start, req.End)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
