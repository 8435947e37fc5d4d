package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quidpay/reconciler/internal/app/service/circleevent"
	"github.com/quidpay/reconciler/internal/app/service/deposit"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/response"
)

// @Summary      Alchemy Webhook
// @Description  Handles Alchemy address-activity notifications. Signature is HMAC-SHA256 over the raw body.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.APIResponse[any]
// @Failure      401  {object}  response.APIResponse[any]
// @Router       /api/v1/alchemy/webhooks [post]
// ApiAlchemyWebhook verifies and ingests address-activity deliveries, then
// acks immediately and matches deposits in a detached task.
func ApiAlchemyWebhook(svc *deposit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
			return
		}
		if err := svc.VerifySignature(c.GetHeader("x-alchemy-signature"), body); err != nil {
			logctx.FromGin(c, log).Warnw("webhook_alchemy_bad_signature", "error", err.Error())
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := svc.HandleActivityWebhook(ctx, body); err != nil {
				logctx.FromCtx(ctx, log).Errorw("webhook_alchemy_handle_error", "error", err.Error())
			}
		}()
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// RegisterWebhookRoutes mounts both provider webhook endpoints. Expected at
// "/api/v1".
func RegisterWebhookRoutes(r gin.IRouter, circle *circleevent.Service, alchemy *deposit.Service, log *zap.SugaredLogger) {
	r.POST("/circle/webhooks", ApiCircleWebhook(circle, log))
	r.POST("/alchemy/webhooks", ApiAlchemyWebhook(alchemy, log))
}
