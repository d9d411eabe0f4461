package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/internal/service"
)

type NotificationHandler struct {
	pushService service.PushService
}

func NewNotificationHandler(pushService service.PushService) *NotificationHandler {
	return &NotificationHandler{pushService: pushService}
}

// ProcessDue runs one poller pass on demand.
func (h *NotificationHandler) ProcessDue(c *gin.Context) {
	res, err := h.pushService.ProcessDue(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
