package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// Parser reads one gateway callback payload.
type Parser interface {
	GetGateway(ctx context.Context) string
	GetPaymentID(ctx context.Context) string
	GetStatus(ctx context.Context) types.PaymentStatus
	GetTransactionRef(ctx context.Context) *string
	GetMetadata(ctx context.Context) map[string]any
	// GetData returns the payload as it should be archived.
	GetData(ctx context.Context) any
}

// ParseFunc builds a Parser from a raw request body.
type ParseFunc func(gateway string, body []byte) (Parser, error)

// JSONParser understands the generic callback body
//
//	{"payment_id": "...", "status": "completed", "transaction_ref": "...", "metadata": {...}}
type JSONParser struct {
	Gateway string
	Body    struct {
		PaymentID      string              `json:"payment_id"`
		Status         types.PaymentStatus `json:"status"`
		TransactionRef string              `json:"transaction_ref"`
		Metadata       map[string]any      `json:"metadata"`
	}
	raw json.RawMessage
}

func ParseJSON(gateway string, body []byte) (Parser, error) {
	p := &JSONParser{Gateway: gateway, raw: json.RawMessage(body)}
	if err := json.Unmarshal(body, &p.Body); err != nil {
		return nil, apperr.InvalidArgument("decode %s callback: %v", gateway, err)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *JSONParser) normalize() error {
	p.Body.PaymentID = strings.TrimSpace(p.Body.PaymentID)
	if p.Body.PaymentID == "" {
		return apperr.InvalidArgument("%s callback without payment_id", p.Gateway)
	}
	p.Body.Status = types.PaymentStatus(strings.ToLower(string(p.Body.Status)))
	if !p.Body.Status.Valid() {
		return apperr.InvalidArgument("%s callback with unknown status %q", p.Gateway, p.Body.Status)
	}
	return nil
}

func (p *JSONParser) GetGateway(context.Context) string { return p.Gateway }
func (p *JSONParser) GetPaymentID(context.Context) string { return p.Body.PaymentID }
func (p *JSONParser) GetStatus(context.Context) types.PaymentStatus { return p.Body.Status }
func (p *JSONParser) GetMetadata(context.Context) map[string]any { return p.Body.Metadata }
func (p *JSONParser) GetData(context.Context) any { return p.raw }

func (p *JSONParser) GetTransactionRef(context.Context) *string {
	if p.Body.TransactionRef == "" {
		return nil
	}
	return &p.Body.TransactionRef
}

func (p *JSONParser) String() string {
	return fmt.Sprintf("%s callback for payment %s (%s)", p.Gateway, p.Body.PaymentID, p.Body.Status)
}
