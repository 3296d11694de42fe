package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/pkg/response"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

type RegisterUserRequest struct {
	ExternalID int64 `json:"external_id"`
	user.Profile
}

// @Summary      Register User
// @Description  Creates the user or refreshes its profile.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        request body handlers.RegisterUserRequest true "User identity and profile"
// @Success      200  {object}  response.APIResponse[models.User]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /api/v1/users [post]
// ApiRegisterUser handles POST /api/v1/users
func ApiRegisterUser(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.ExternalID == 0 {
			badRequest(c, "missing external_id")
			return
		}
		u, err := m.RegisterUser(c.Request.Context(), req.ExternalID, req.Profile)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(u))
	}
}

// @Summary      Get VIP Status
// @Description  Reports whether the user currently holds an active subscription.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Success      200  {object}  response.APIResponse[types.VipStatus]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/vip [get]
// ApiGetVipStatus handles GET /api/v1/users/:external_id/vip
func ApiGetVipStatus(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		st, err := m.GetVipStatus(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(st))
	}
}

// @Summary      Get Subscription
// @Description  Returns the active subscription of the user.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Success      200  {object}  response.APIResponse[types.UserSubscriptionInfo]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/subscription [get]
// ApiGetSubscription handles GET /api/v1/users/:external_id/subscription
func ApiGetSubscription(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		info, err := m.GetSubscriptionInfo(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

// @Summary      Cancel Subscription
// @Description  Cancels the active subscription and recomputes the VIP state.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Success      200  {object}  response.APIResponse[types.UserSubscriptionInfo]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/subscription/cancel [post]
// ApiCancelSubscription handles POST /api/v1/users/:external_id/subscription/cancel
func ApiCancelSubscription(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		info, err := m.CancelSubscription(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

// @Summary      Redeem Activation Code
// @Description  Claims a code and activates the plan it was issued for.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Param        request body object true "Activation code"
// @Success      200  {object}  response.APIResponse[membership.RedeemResult]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Failure      422  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/redeem [post]
// ApiRedeemCode handles POST /api/v1/users/:external_id/redeem
func ApiRedeemCode(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		var req struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
			badRequest(c, "missing code")
			return
		}
		res, err := m.RedeemCode(c.Request.Context(), id, req.Code)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Start Purchase
// @Description  Opens a pending payment for a plan. The gateway completes it through the webhook.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Param        request body object true "Plan id and payment type"
// @Success      200  {object}  response.APIResponse[models.Payment]
// @Failure      400  {object}  response.APIResponse[any]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/purchases [post]
// ApiStartPurchase handles POST /api/v1/users/:external_id/purchases
func ApiStartPurchase(m *membership.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		var req struct {
			PlanID string            `json:"plan_id"`
			Type   types.PaymentType `json:"type"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.Type == "" {
			req.Type = types.PaymentTypeCard
		}
		p, err := m.StartPurchase(c.Request.Context(), id, req.PlanID, req.Type)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      List User Messages
// @Description  Lists broadcast deliveries of the user, newest first.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Param        include_read query bool false "Include read messages"
// @Param        limit query int false "Page size"
// @Param        offset query int false "Page offset"
// @Success      200  {object}  response.APIResponse[[]models.MessageDelivery]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/messages [get]
// ApiListUserMessages handles GET /api/v1/users/:external_id/messages
func ApiListUserMessages(users *user.Service, messages *broadcast.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		u, err := users.GetByExternalID(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		items, err := messages.ListUserMessages(c.Request.Context(), u.ID,
			c.Query("include_read") == "true", queryInt(c, "limit", 20), queryInt(c, "offset", 0))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      Mark Message Read
// @Description  Marks one delivered message as read.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Param        message_id path string true "Message id"
// @Success      200  {object}  response.APIResponse[map[string]bool]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/messages/{message_id}/read [post]
// ApiMarkMessageRead handles POST /api/v1/users/:external_id/messages/:message_id/read
func ApiMarkMessageRead(users *user.Service, messages *broadcast.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		u, err := users.GetByExternalID(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		changed, err := messages.MarkRead(c.Request.Context(), c.Param("message_id"), u.ID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"changed": changed}))
	}
}

// @Summary      List User Payments
// @Description  Lists the payments of the user.
// @Tags         Member
// @Produce      json
// @Param        external_id path int true "Chat platform user id"
// @Param        subscription_only query bool false "Only payments linked to a subscription"
// @Success      200  {object}  response.APIResponse[[]models.Payment]
// @Failure      404  {object}  response.APIResponse[any]
// @Router       /api/v1/users/{external_id}/payments [get]
// ApiListUserPayments handles GET /api/v1/users/:external_id/payments
func ApiListUserPayments(users *user.Service, payments *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := externalID(c)
		if !ok {
			return
		}
		u, err := users.GetByExternalID(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		items, err := payments.ListByUser(c.Request.Context(), u.ID, c.Query("subscription_only") == "true")
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterMemberRoutes(r gin.IRouter, m *membership.Service, users *user.Service, messages *broadcast.Service, payments *payment.Service, log *zap.SugaredLogger) {
	r.POST("/users", ApiRegisterUser(m, log))
	u := r.Group("/users/:external_id")
	u.GET("/vip", ApiGetVipStatus(m, log))
	u.GET("/subscription", ApiGetSubscription(m, log))
	u.POST("/subscription/cancel", ApiCancelSubscription(m, log))
	u.POST("/redeem", ApiRedeemCode(m, log))
	u.POST("/purchases", ApiStartPurchase(m, log))
	u.GET("/messages", ApiListUserMessages(users, messages, log))
	u.POST("/messages/:message_id/read", ApiMarkMessageRead(users, messages, log))
	u.GET("/payments", ApiListUserPayments(users, payments, log))
}
