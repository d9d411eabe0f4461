package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/internal/service"
)

type PersonHandler struct {
	personService service.PersonService
}

func NewPersonHandler(personService service.PersonService) *PersonHandler {
	return &PersonHandler{personService: personService}
}

func (h *PersonHandler) SavePerson(c *gin.Context) {
	var req service.SavePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	person, err := h.personService.SavePerson(c.Request.Context(), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

func (h *PersonHandler) GetPerson(c *gin.Context) {
	person, err := h.personService.GetPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}
