package callback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"

	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// SignedClaims is the payload of a signed callback: the generic callback
// body carried as HS256 JWT claims.
type SignedClaims struct {
	PaymentID      string              `json:"payment_id"`
	Status         types.PaymentStatus `json:"status"`
	TransactionRef string              `json:"transaction_ref,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
	jwt.StandardClaims
}

// ParseSigned returns a ParseFunc for gateways that post a compact JWT
// signed with a shared HMAC secret. exp and nbf are enforced when set.
func ParseSigned(secret []byte) ParseFunc {
	return func(gateway string, body []byte) (Parser, error) {
		claims := &SignedClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(string(body)), claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil {
			return nil, apperr.InvalidArgument("verify %s callback: %v", gateway, err)
		}

		p := &JSONParser{Gateway: gateway}
		p.Body.PaymentID = claims.PaymentID
		p.Body.Status = claims.Status
		p.Body.TransactionRef = claims.TransactionRef
		p.Body.Metadata = claims.Metadata
		// archive the verified claims, not the token
		if raw, err := json.Marshal(claims); err == nil {
			p.raw = raw
		}
		if err := p.normalize(); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// registerGateways installs ParseSigned for every gateway with a signing
// secret and ParseJSON for the unsigned ones. A secret wins when a gateway
// is in both lists.
func registerGateways(h *Handler, cfg *config.Config) {
	for gateway, secret := range cfg.Callback.SigningSecrets {
		if secret == "" {
			continue
		}
		h.Register(gateway, ParseSigned([]byte(secret)))
		h.log.Infow("signed gateway callbacks enabled", "gateway", gateway)
	}
	for _, gateway := range cfg.Callback.UnsignedGateways {
		if _, ok := h.parsers[gateway]; ok || gateway == "" {
			continue
		}
		h.Register(gateway, ParseJSON)
		h.log.Warnw("unsigned gateway callbacks enabled", "gateway", gateway)
	}
}
