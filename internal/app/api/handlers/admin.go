package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/activation"
	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/gatewaylog"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/app/service/statistics"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/pkg/response"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// AdminDeps groups the services behind /api/v1/admin.
type AdminDeps struct {
	Membership    *membership.Service
	Codes         *activation.Service
	Messages      *broadcast.Service
	Notifications *notification.Service
	Payments      *payment.Service
	Statistics    *statistics.Service
	GatewayLogs   *gatewaylog.Service
	Log           *zap.SugaredLogger
}

type IssueCodesRequest struct {
	PlanID string `json:"plan_id"`
	Count  int    `json:"count"`
}

// @Summary      Issue Activation Codes (Admin)
// @Description  Generates a batch of single-use codes for a plan.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.IssueCodesRequest true "Plan and count"
// @Success      200  {object}  response.APIResponse[map[string]any]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/codes [post]
// ApiIssueCodes handles POST /api/v1/admin/codes
func ApiIssueCodes(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IssueCodesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		codes, err := d.Membership.IssueCodes(c.Request.Context(), req.PlanID, req.Count)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]any{"plan_id": req.PlanID, "codes": codes}))
	}
}

// @Summary      List Unused Codes (Admin)
// @Description  Lists codes that have not been redeemed.
// @Tags         Admin
// @Produce      json
// @Param        plan_id query string false "Plan id"
// @Param        limit query int false "Page size"
// @Success      200  {object}  response.APIResponse[[]models.ActivationCode]
// @Router       /api/v1/admin/codes [get]
// ApiListCodes handles GET /api/v1/admin/codes?plan_id=&limit=
func ApiListCodes(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		codes, err := d.Codes.ListUnused(c.Request.Context(), c.Query("plan_id"), queryInt(c, "limit", 100))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(codes))
	}
}

// @Summary      Create Message (Admin)
// @Description  Stores a broadcast message, optionally with an ad appended.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body broadcast.CreateRequest true "Message"
// @Success      200  {object}  response.APIResponse[models.Message]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/messages [post]
// ApiCreateMessage handles POST /api/v1/admin/messages
func ApiCreateMessage(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req broadcast.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		msg, err := d.Messages.Create(c.Request.Context(), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(msg))
	}
}

type BroadcastRequest struct {
	// Recipients are user ids. Omitted means every user, or every VIP
	// for a VIP-only message.
	Recipients []string `json:"recipients"`
}

// @Summary      Broadcast Message (Admin)
// @Description  Fans a message out to the given users, or to everyone when omitted.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        message_id path string true "Message id"
// @Param        request body handlers.BroadcastRequest false "Recipients"
// @Success      200  {object}  response.APIResponse[map[string]int64]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/messages/{message_id}/broadcast [post]
// ApiBroadcastMessage handles POST /api/v1/admin/messages/:message_id/broadcast
func ApiBroadcastMessage(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BroadcastRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		n, err := d.Messages.Broadcast(c.Request.Context(), c.Param("message_id"), req.Recipients)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]int64{"created": n}))
	}
}

// @Summary      Create Notification (Admin)
// @Description  Queues a notification for email and/or chat delivery.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body notification.CreateRequest true "Notification"
// @Success      200  {object}  response.APIResponse[models.Notification]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/notifications [post]
// ApiCreateNotification handles POST /api/v1/admin/notifications
func ApiCreateNotification(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notification.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		n, err := d.Notifications.Create(c.Request.Context(), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(n))
	}
}

// @Summary      Dispatch Notifications (Admin)
// @Description  Runs one dispatch pass for a channel, or for every channel.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body object false "Channel"
// @Success      200  {object}  response.APIResponse[[]notification.DispatchResult]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/notifications/dispatch [post]
// ApiDispatchNotifications handles POST /api/v1/admin/notifications/dispatch.
// An empty channel runs a pass for every channel.
func ApiDispatchNotifications(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Channel types.Channel `json:"channel"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		var (
			results []notification.DispatchResult
			err     error
		)
		if req.Channel == "" {
			results, err = d.Notifications.DispatchAll(c.Request.Context())
		} else {
			var r notification.DispatchResult
			r, err = d.Notifications.DispatchPending(c.Request.Context(), req.Channel)
			results = []notification.DispatchResult{r}
		}
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(results))
	}
}

// @Summary      Open Payment (Admin)
// @Description  Records a pending payment.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.OpenRequest true "Payment"
// @Success      200  {object}  response.APIResponse[models.Payment]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/payments [post]
// ApiOpenPayment handles POST /api/v1/admin/payments
func ApiOpenPayment(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.OpenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := d.Payments.Open(c.Request.Context(), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

type ListPaymentsResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payments.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.APIResponse[handlers.ListPaymentsResponse]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/payments/list [post]
// ApiListPayments handles POST /api/v1/admin/payments/list
func ApiListPayments(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		items, total, err := d.Payments.Scan(c.Request.Context(), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: total}))
	}
}

// @Summary      Advance Payment (Admin)
// @Description  Moves a payment forward in its status order.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        payment_id path string true "Payment id"
// @Param        request body payment.AdvanceRequest true "Target status"
// @Success      200  {object}  response.APIResponse[models.Payment]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Failure      422  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/payments/{payment_id}/advance [post]
// ApiAdvancePayment handles POST /api/v1/admin/payments/:payment_id/advance.
// Completed, failed and refunded go through the purchase flow so the
// membership side effects match a gateway callback.
func ApiAdvancePayment(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.AdvanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ctx, id := c.Request.Context(), c.Param("payment_id")
		var (
			p   *models.Payment
			err error
		)
		switch req.Status {
		case types.PaymentStatusCompleted:
			p, err = d.Membership.CompletePurchase(ctx, id, req)
		case types.PaymentStatusFailed:
			p, err = d.Membership.FailPurchase(ctx, id, req)
		case types.PaymentStatusRefunded:
			p, err = d.Membership.RefundPurchase(ctx, id, req)
		default:
			p, err = d.Payments.Advance(ctx, id, req)
		}
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Get Membership Statistics (Admin)
// @Description  Retrieves daily membership and payment statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.Request true "Statistic request parameters"
// @Success      200  {object}  response.APIResponse[statistics.Response]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/get_membership_statistic [post]
// ApiGetMembershipStatistic handles POST /api/v1/admin/get_membership_statistic
func ApiGetMembershipStatistic(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := d.Statistics.Get(c.Request.Context(), &req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Send Free Gift (Admin)
// @Description  Grants a plan to a user without payment.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body membership.GiftRequest true "Send free gift request"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/send_free_gift [post]
// ApiSendFreeGift handles POST /api/v1/admin/send_free_gift
func ApiSendFreeGift(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req membership.GiftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.ExternalID == 0 || req.PlanID == "" || req.OperatorID == "" {
			badRequest(c, "missing external_id or plan_id or operator_id")
			return
		}
		sub, err := d.Membership.Gift(c.Request.Context(), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      List Gateway Callbacks (Admin)
// @Description  Lists archived gateway callbacks.
// @Tags         Admin
// @Produce      json
// @Param        payment_id query string false "Payment id"
// @Param        limit query int false "Page size"
// @Success      200  {object}  response.APIResponse[[]models.GatewayCallbackLog]
// @Router       /api/v1/admin/gateway_callbacks [get]
// ApiListGatewayCallbacks handles GET /api/v1/admin/gateway_callbacks?payment_id=&limit=
func ApiListGatewayCallbacks(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := d.GatewayLogs.List(c.Request.Context(), c.Query("payment_id"), queryInt(c, "limit", 50))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterAdminRoutes(r gin.IRouter, d *AdminDeps) {
	r.POST("/codes", ApiIssueCodes(d))
	r.GET("/codes", ApiListCodes(d))
	r.POST("/messages", ApiCreateMessage(d))
	r.POST("/messages/:message_id/broadcast", ApiBroadcastMessage(d))
	r.POST("/notifications", ApiCreateNotification(d))
	r.POST("/notifications/dispatch", ApiDispatchNotifications(d))
	r.POST("/payments", ApiOpenPayment(d))
	r.POST("/payments/list", ApiListPayments(d))
	r.POST("/payments/:payment_id/advance", ApiAdvancePayment(d))
	r.POST("/get_membership_statistic", ApiGetMembershipStatistic(d))
	r.POST("/send_free_gift", ApiSendFreeGift(d))
	r.GET("/gateway_callbacks", ApiListGatewayCallbacks(d))
}
