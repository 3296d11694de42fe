package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/callback"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/response"
)

// maxCallbackBody caps gateway payloads read into memory.
const maxCallbackBody = 1 << 20

// @Summary      Payment Gateway Webhook
// @Description  Applies a gateway callback to the payment and the membership.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        gateway path string true "Configured gateway name"
// @Success      200  {object}  response.APIResponse[map[string]any]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Failure      422  {object}  response.APIResponse[any]
// @Router       /api/v2/payment/webhook/{gateway} [post]
// ApiPaymentWebhook handles POST /api/v2/payment/webhook/:gateway
func ApiPaymentWebhook(h *callback.Handler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		gateway := c.Param("gateway")
		logger := logctx.FromGin(c, log)
		logger.Infow("webhook_received", "gateway", gateway)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}
		p, err := h.Handle(c.Request.Context(), gateway, body)
		if err != nil {
			logger.Errorw("webhook_handle_error", "gateway", gateway, "error", err.Error())
			fail(c, log, err)
			return
		}
		logger.Infow("webhook_handled", "gateway", gateway, "payment_id", p.ID, "status", p.Status)
		c.JSON(http.StatusOK, response.OKT(map[string]any{"payment_id": p.ID, "status": p.Status}))
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, h *callback.Handler, log *zap.SugaredLogger) {
	r.POST("/webhook/:gateway", ApiPaymentWebhook(h, log))
}
