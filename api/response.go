// Package api serves the store's read queries over HTTP, every result
// wrapped in the same {code, message, data} envelope.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/tradeview/apperr"
)

const successMessage = "Success"

// Response is the envelope every endpoint returns. Data is null on failure.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// List wraps a collection so it renders as {"data": [...]}.
type List[T any] struct {
	Data []T `json:"data"`
}

func listOf[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Data: items}
}

// Success wraps data with code 0.
func Success(data any) Response {
	return Response{Code: apperr.CodeSuccess, Message: successMessage, Data: data}
}

// Failure builds the envelope for err. Client errors and explicitly
// overridden messages are reported as is. Other server errors carry only the
// kind's default message unless expose is set, in which case the full
// annotated chain is reported.
func Failure(err error, expose bool) Response {
	kind := apperr.KindOf(err)
	return Response{Code: kind.Code(), Message: failureMessage(kind, err, expose)}
}

func failureMessage(kind apperr.Kind, err error, expose bool) string {
	var e *apperr.Error
	tagged := errors.As(err, &e)
	switch {
	case tagged && e.Msg != "":
		return e.Msg
	case kind.ClientError() && tagged:
		return e.Message()
	case !kind.ClientError() && expose && err != nil:
		return err.Error()
	}
	return kind.Message()
}

// Status is the HTTP status for err; nil is 200.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return apperr.KindOf(err).Status()
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success(data))
}

func fail(c *gin.Context, err error, expose bool) {
	c.AbortWithStatusJSON(Status(err), Failure(err, expose))
}
