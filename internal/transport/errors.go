package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/pkg/queue"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidDateRange),
		errors.Is(err, entity.ErrRangeTooLong),
		errors.Is(err, entity.ErrInvalidPerson),
		errors.Is(err, entity.ErrInvalidBroadcast),
		errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrPersonNotFound),
		errors.Is(err, entity.ErrBroadcastNotFound),
		errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAllSendsFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Success: false, Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
}
