package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quidpay/reconciler/internal/app/service/circleevent"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/response"
)

// @Summary      Circle Webhook
// @Description  Handles Circle transaction lifecycle notifications. Signature is HMAC-SHA256 over "timestamp.body".
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.APIResponse[any]
// @Failure      401  {object}  response.APIResponse[any]
// @Router       /api/v1/circle/webhooks [post]
// ApiCircleWebhook verifies and ingests Circle notifications. The delivery
// is acknowledged immediately and processed in a detached task, so a slow
// handler never triggers a provider retry by HTTP timeout; redelivery
// safety is the dedup ledger's job.
func ApiCircleWebhook(svc *circleevent.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
			return
		}
		signature := c.GetHeader("circle-signature")
		timestamp := c.GetHeader("circle-timestamp")
		if err := svc.VerifySignature(signature, timestamp, body); err != nil {
			logctx.FromGin(c, log).Warnw("webhook_circle_bad_signature", "error", err.Error())
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := svc.HandleNotification(ctx, body); err != nil {
				logctx.FromCtx(ctx, log).Errorw("webhook_circle_handle_error", "error", err.Error())
			}
		}()
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}
