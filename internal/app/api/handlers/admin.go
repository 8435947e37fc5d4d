package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/app/service/cctp"
	"github.com/quidpay/reconciler/internal/app/service/circleevent"
	"github.com/quidpay/reconciler/internal/app/service/paymaster"
	"github.com/quidpay/reconciler/pkg/response"
	"github.com/quidpay/reconciler/pkg/types"
)

type PaymasterSyncRequest struct {
	Blockchain types.Blockchain `json:"blockchain" binding:"required"`
	FromBlock  uint64           `json:"from_block" binding:"required"`
	ToBlock    uint64           `json:"to_block" binding:"required"`
}

// @Summary      Paymaster catch-up sync
// @Description  Replays UserOperationSponsored logs for a block range. Already-recorded logs are skipped.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        payload body PaymasterSyncRequest true "sync range"
// @Success      200  {object}  response.APIResponse[paymaster.SyncResult]
// @Router       /api/v1/admin/paymaster/sync [post]
func ApiPaymasterSync(sup *paymaster.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymasterSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.ToBlock < req.FromBlock {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "to_block before from_block"))
			return
		}
		result, err := sup.SyncEvents(c.Request.Context(), req.Blockchain, req.FromBlock, req.ToBlock)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(result))
	}
}

// @Summary      Get CCTP transfer
// @Tags         Admin
// @Produce      json
// @Param        reference path string true "transfer reference"
// @Success      200  {object}  response.APIResponse[models.CCTPTransfer]
// @Router       /api/v1/admin/transfers/{reference} [get]
func ApiGetTransfer(svc *cctp.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		transfer, err := svc.GetTransferByReference(c.Request.Context(), c.Param("reference"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeBadRequest, "transfer not found"))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(transfer))
	}
}

// @Summary      List transactions
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        payload body circleevent.ScanTransactionsRequest true "filters"
// @Success      200  {object}  response.APIResponse[circleevent.ScanTransactionsResponse]
// @Router       /api/v1/admin/transactions [post]
func ApiScanTransactions(svc *circleevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req circleevent.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, sup *paymaster.Supervisor, transfers *cctp.Service, events *circleevent.Service) {
	r.POST("/paymaster/sync", ApiPaymasterSync(sup))
	r.GET("/transfers/:reference", ApiGetTransfer(transfers))
	r.POST("/transactions", ApiScanTransactions(events))
}
