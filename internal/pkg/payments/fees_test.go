package payments

import "testing"

func TestCalculateFeesCard(t *testing.T) {
	tests := []struct {
		name         string
		gross        int64
		rate         float64
		wantProvider int64
		wantPlatform int64
		wantNet      int64
	}{
		{name: "100 dollars at 10%", gross: 10000, rate: 0.10, wantProvider: 320, wantPlatform: 968, wantNet: 8712},
		{name: "50 dollars at 10%", gross: 5000, rate: 0.10, wantProvider: 175, wantPlatform: 483, wantNet: 4342},
		{name: "25 dollars at 10%", gross: 2500, rate: 0.10, wantProvider: 103, wantPlatform: 240, wantNet: 2157},
		{name: "zero platform rate", gross: 10000, rate: 0, wantProvider: 320, wantPlatform: 0, wantNet: 9680},
	}

	for _, tt := range tests {
		got := CalculateFees(tt.gross, PaymentMethodCard, tt.rate)
		if got.ProviderFee != tt.wantProvider {
			t.Fatalf("%s: provider fee = %d, want %d", tt.name, got.ProviderFee, tt.wantProvider)
		}
		if got.PlatformFee != tt.wantPlatform {
			t.Fatalf("%s: platform fee = %d, want %d", tt.name, got.PlatformFee, tt.wantPlatform)
		}
		if got.NetAmount != tt.wantNet {
			t.Fatalf("%s: net = %d, want %d", tt.name, got.NetAmount, tt.wantNet)
		}
		if got.Clamped {
			t.Fatalf("%s: unexpectedly clamped", tt.name)
		}
	}
}

func TestCalculateFeesBank(t *testing.T) {
	got := CalculateFees(10000, PaymentMethodBank, 0.10)
	if got.ProviderFee != 0 {
		t.Fatalf("bank provider fee = %d, want 0", got.ProviderFee)
	}
	if got.PlatformFee != 1000 {
		t.Fatalf("bank platform fee = %d, want 1000", got.PlatformFee)
	}
	if got.NetAmount != 9000 {
		t.Fatalf("bank net = %d, want 9000", got.NetAmount)
	}
}

// A gross below the fixed card fee would go negative; the net is floored at
// zero and flagged instead of failing the event.
func TestCalculateFeesClampsNegativeNet(t *testing.T) {
	got := CalculateFees(10, PaymentMethodCard, 0.10)
	if !got.Clamped {
		t.Fatalf("expected clamp for gross below the fixed fee")
	}
	if got.NetAmount != 0 {
		t.Fatalf("clamped net = %d, want 0", got.NetAmount)
	}
}

func TestCalculateFeesZeroGross(t *testing.T) {
	got := CalculateFees(0, PaymentMethodBank, 0.10)
	if got.NetAmount != 0 || got.PlatformFee != 0 || got.ProviderFee != 0 || got.Clamped {
		t.Fatalf("zero gross breakdown = %+v, want all zero and unclamped", got)
	}
}
