package handler

import (
	"net/http"

	"installpro/internal/service"
	"installpro/pkg/pagination"
	"installpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	contractService service.ContractService
}

func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

func (h *ContractHandler) RegisterRoutes(router *gin.RouterGroup) {
	contracts := router.Group("/api/contracts")
	{
		contracts.GET("", h.ListContracts)
		contracts.GET("/:id", h.GetContract)
	}
}

// ListContracts returns the contracts visible to the caller
// @Summary      List contracts
// @Description  Vendors and installers see contracts they are party to; back office sees all.
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending_signature, signed or expired"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page[model.Contract]}
// @Router       /api/contracts [get]
func (h *ContractHandler) ListContracts(c *gin.Context) {
	page, err := h.contractService.ListContracts(c.Request.Context(), actor(c), c.Query("status"), pagination.Parse(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetContract returns a single contract
// @Summary      Get contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response{data=model.Contract}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/contracts/{id} [get]
func (h *ContractHandler) GetContract(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	contract, err := h.contractService.GetContract(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}
