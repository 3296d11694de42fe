package types

type PaymentType string

const (
	PaymentTypeCard       PaymentType = "card"
	PaymentTypeCrypto     PaymentType = "crypto"
	PaymentTypeThirdParty PaymentType = "third_party"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeCard, PaymentTypeCrypto, PaymentTypeThirdParty:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// paymentPredecessors lists, for each target status, the statuses a payment
// may be in when it moves there. Repeating the current status is accepted so
// that redelivered gateway callbacks stay idempotent.
var paymentPredecessors = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusPending},
	PaymentStatusCompleted: {PaymentStatusPending, PaymentStatusCompleted},
	PaymentStatusFailed:    {PaymentStatusPending, PaymentStatusFailed},
	PaymentStatusRefunded:  {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentPredecessors[s]
	return ok
}

// Predecessors returns the statuses from which s can be reached.
func (s PaymentStatus) Predecessors() []PaymentStatus {
	return paymentPredecessors[s]
}

// CanAdvanceTo reports whether a payment in status s may move to next.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	for _, p := range paymentPredecessors[next] {
		if p == s {
			return true
		}
	}
	return false
}
