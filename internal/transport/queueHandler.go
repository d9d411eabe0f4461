package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/pkg/queue"
)

type QueueStatsProvider interface {
	GetQueueStats(ctx context.Context) (*queue.QueueStats, error)
}

type QueueHandler struct {
	stats QueueStatsProvider
	dlq   queue.DLQHandler
}

func NewQueueHandler(stats QueueStatsProvider, dlq queue.DLQHandler) *QueueHandler {
	return &QueueHandler{stats: stats, dlq: dlq}
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.stats.GetQueueStats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *QueueHandler) FailedTasks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	tasks, err := h.dlq.GetFailedTasks(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "limit": limit})
}

func (h *QueueHandler) Requeue(c *gin.Context) {
	if err := h.dlq.RequeueFailedTask(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task requeued"})
}
