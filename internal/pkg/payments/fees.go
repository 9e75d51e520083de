package payments

import "math"

// Card processing fee schedule: 2.9% + 30 cents, applied before the platform
// fee. All amounts are in currency minor units.
const (
	cardFeeRate  = 0.029
	cardFeeFixed = 30
)

type PaymentMethodKind string

const (
	PaymentMethodCard PaymentMethodKind = "card"
	PaymentMethodBank PaymentMethodKind = "bank"
)

// FeeBreakdown is the result of splitting a gross charge into provider,
// connect and platform fees. Clamped is set when the configured fee schedule
// would have produced a negative net; the net is floored at zero and the
// payment is still recorded, a misconfigured schedule must not block
// reconciliation.
type FeeBreakdown struct {
	ProviderFee int64
	ConnectFee  int64
	PlatformFee int64
	NetAmount   int64
	Clamped     bool
}

// CalculateFees computes the fee breakdown for a gross amount. The platform
// fee rate is applied to the post-provider-fee amount. Bank transfers carry no
// provider fee in this schedule.
func CalculateFees(gross int64, method PaymentMethodKind, platformRate float64) FeeBreakdown {
	var providerFee int64
	if method == PaymentMethodCard {
		providerFee = int64(math.Round(float64(gross)*cardFeeRate)) + cardFeeFixed
	}

	platformFee := int64(math.Round(float64(gross-providerFee) * platformRate))

	net := gross - providerFee - platformFee
	clamped := false
	if net < 0 {
		net = 0
		clamped = true
	}

	return FeeBreakdown{
		ProviderFee: providerFee,
		PlatformFee: platformFee,
		NetAmount:   net,
		Clamped:     clamped,
	}
}
