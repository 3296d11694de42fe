package callback

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/alanwang5210/telegram-bot/internal/app/service/gatewaylog"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(registerGateways),
)

// Handler applies payment gateway callbacks to the ledger and the
// membership state. Every callback is archived with its outcome.
type Handler struct {
	logs       *gatewaylog.Service
	membership *membership.Service
	payments   *payment.Service
	parsers    map[string]ParseFunc
	log        *zap.SugaredLogger
}

func NewHandler(logs *gatewaylog.Service, m *membership.Service, payments *payment.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{logs: logs, membership: m, payments: payments, parsers: map[string]ParseFunc{}, log: log}
}

// Register installs the parser of a gateway. Callbacks from gateways
// without one are rejected.
func (h *Handler) Register(gateway string, fn ParseFunc) {
	h.parsers[gateway] = fn
}

func (h *Handler) parser(gateway string, body []byte) (Parser, error) {
	fn, ok := h.parsers[gateway]
	if !ok {
		return nil, apperr.InvalidArgument("gateway %q is not configured", gateway)
	}
	return fn(gateway, body)
}

// Handle processes one callback body from gateway.
func (h *Handler) Handle(ctx context.Context, gateway string, body []byte) (p *models.Payment, resErr error) {
	log := logctx.FromCtx(ctx, h.log)
	entry := &models.GatewayCallbackLog{
		Gateway: gateway,
		TraceID: logctx.TraceID(ctx),
		Data:    archive(body),
	}

	parser, err := h.parser(gateway, body)
	if err != nil {
		h.logs.Received(ctx, entry)
		h.logs.Finish(ctx, entry, err, nil)
		return nil, err
	}
	if data, err := json.Marshal(parser.GetData(ctx)); err == nil {
		entry.Data = archive(data)
	}
	entry.PaymentID = lo.ToPtr(parser.GetPaymentID(ctx))
	h.logs.Received(ctx, entry)

	defer func() {
		result := map[string]any{}
		if p != nil {
			entry.UserID = &p.UserID
			result["payment_status"] = p.Status
			result["subscription_id"] = p.SubscriptionID
		}
		h.logs.Finish(ctx, entry, resErr, result)
	}()

	req := payment.AdvanceRequest{
		TransactionRef: parser.GetTransactionRef(ctx),
		Metadata:       parser.GetMetadata(ctx),
	}
	paymentID := parser.GetPaymentID(ctx)
	switch status := parser.GetStatus(ctx); status {
	case types.PaymentStatusCompleted:
		p, resErr = h.membership.CompletePurchase(ctx, paymentID, req)
	case types.PaymentStatusFailed:
		p, resErr = h.membership.FailPurchase(ctx, paymentID, req)
	case types.PaymentStatusRefunded:
		p, resErr = h.membership.RefundPurchase(ctx, paymentID, req)
	case types.PaymentStatusPending:
		req.Status = status
		p, resErr = h.payments.Advance(ctx, paymentID, req)
	default:
		resErr = apperr.InvalidArgument("unsupported callback status %q", status)
	}
	if resErr != nil {
		log.Warnw("gateway callback not applied", "gateway", gateway, "payment_id", paymentID, "err", resErr)
		return nil, resErr
	}
	log.Infow("gateway callback applied", "gateway", gateway, "payment_id", paymentID, "status", p.Status)
	return p, nil
}

// archive keeps valid JSON as is and wraps anything else as a string.
func archive(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	b, _ := json.Marshal(string(body))
	return datatypes.JSON(b)
}
