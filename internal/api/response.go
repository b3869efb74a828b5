package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/maplenou/maplenou-api/internal/api/middleware"
	"github.com/maplenou/maplenou-api/internal/errs"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// fail writes the error envelope for err. Unknown errors become 500 and
// their text is only exposed in development.
func (h *Handler) fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	body := envelope{
		Success: false,
		Message: errs.Message(err),
		Code:    errs.Code(err),
	}
	if h.development {
		body.Detail = err.Error()
	}

	var event *zerolog.Event
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	} else {
		event = h.log.Debug()
	}
	event.
		Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("code", body.Code).
		Int("status", status).
		Msg("Request failed")

	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Success: false,
		Message: msg,
		Code:    errs.Code(errs.ErrInvalidInput),
	})
}
