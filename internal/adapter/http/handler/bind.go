package handler

import (
	"errors"
	"io"

	"ride-settlement/internal/adapter/http/dto"
	"ride-settlement/internal/adapter/http/middleware"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func bindURI(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindUri(obj); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(obj)
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// confirmedBy prefers the explicit confirmer and falls back to the
// authenticated operator.
func confirmedBy(c *gin.Context, req dto.ConfirmRequest) *uuid.UUID {
	if req.ConfirmedByUserID != nil {
		id := uuid.MustParse(*req.ConfirmedByUserID)
		return &id
	}
	return middleware.ActorID(c)
}
