package handler

import (
	"net/http"
	"strconv"

	"installpro/internal/middleware"
	"installpro/internal/model"
	"installpro/pkg/apperror"
	"installpro/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Role sets shared by route guards.
var (
	elevatedRoles   = []string{model.RoleAdmin, model.RoleSuperAdmin}
	backOfficeRoles = []string{model.RoleAdmin, model.RoleSuperAdmin, model.RolePurchasing}
	projectCreators = []string{model.RoleVendor, model.RoleAdmin, model.RoleSuperAdmin, model.RolePurchasing}
)

func fail(c *gin.Context, err error) {
	status, body := response.FromError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Solicitud inválida: "+err.Error()))
}

func actor(c *gin.Context) model.Actor {
	a, _ := middleware.CurrentActor(c)
	return a
}

func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperror.Invalid("ID inválido")
	}
	return uint(v), nil
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Invalid("ID inválido")
	}
	return id, nil
}
