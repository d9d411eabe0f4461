package transport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/internal/service"
)

type BroadcastHandler struct {
	broadcastService service.BroadcastService
	// spawn runs the fan-out after the response is written.
	spawn func(func())
}

func NewBroadcastHandler(broadcastService service.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{
		broadcastService: broadcastService,
		spawn:            func(f func()) { go f() },
	}
}

type SendDirectRequest struct {
	EventID string   `json:"event_id" binding:"required"`
	Mobiles []string `json:"mobiles" binding:"required,min=1"`
	Message string   `json:"message" binding:"required"`
}

// CreateBroadcast stores the event and answers 202; the fan-out continues
// past the request lifetime.
func (h *BroadcastHandler) CreateBroadcast(c *gin.Context) {
	var req service.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	event, err := h.broadcastService.CreateBroadcast(c.Request.Context(), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	h.spawn(func() { h.dispatch(ctx, event) })

	c.JSON(http.StatusAccepted, event)
}

func (h *BroadcastHandler) dispatch(ctx context.Context, event *entity.BroadcastEvent) {
	res, err := h.broadcastService.OnEventCreated(ctx, event)
	if err != nil {
		logrus.WithField("event_id", event.ID).Errorf("broadcast fan-out failed: %v", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"mode":     res.Mode,
		"sent":     res.Sent,
		"queued":   res.Queued,
		"failed":   res.Failed,
	}).Info("broadcast fan-out finished")
}

func (h *BroadcastHandler) SendDirect(c *gin.Context) {
	var req SendDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.broadcastService.SendDirect(c.Request.Context(), req.EventID, req.Mobiles, req.Message)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
