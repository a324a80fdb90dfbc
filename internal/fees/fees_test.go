package fees

import "testing"

func TestCompute(t *testing.T) {
	cases := []struct {
		name    string
		amount  uint64
		feeBps  uint16
		wantFee uint64
		wantNet uint64
	}{
		{"zero rate", 1_000_000_000, 0, 0, 1_000_000_000},
		{"250 bps", 10_000_000, 250, 250_000, 9_750_000},
		{"full rate", 5_000, 10_000, 5_000, 0},
		{"rounds down", 999, 250, 24, 975},
		{"one bps", 10_000, 1, 1, 9_999},
		{"below one unit", 39, 250, 0, 39},
		{"large amount no overflow", 2_500_000_000_000_000, 9_999, 2_499_750_000_000_000, 250_000_000_000},
	}

	for _, tc := range cases {
		fee, net := Compute(tc.amount, tc.feeBps)
		if fee != tc.wantFee || net != tc.wantNet {
			t.Fatalf("%s: Compute(%d, %d) = (%d, %d), want (%d, %d)",
				tc.name, tc.amount, tc.feeBps, fee, net, tc.wantFee, tc.wantNet)
		}
		if fee+net != tc.amount {
			t.Fatalf("%s: fee %d + net %d != amount %d", tc.name, fee, net, tc.amount)
		}
	}
}

func TestComputeConservation(t *testing.T) {
	amounts := []uint64{1, 7, 100, 10_000, 123_456_789, 1 << 40}
	rates := []uint16{0, 1, 30, 250, 5_000, 9_999, 10_000}

	for _, amount := range amounts {
		for _, rate := range rates {
			fee, net := Compute(amount, rate)
			if fee+net != amount {
				t.Fatalf("Compute(%d, %d): fee %d + net %d != amount", amount, rate, fee, net)
			}
			if fee > amount {
				t.Fatalf("Compute(%d, %d): fee %d exceeds amount", amount, rate, fee)
			}
		}
	}
}

func TestValidateRate(t *testing.T) {
	for _, valid := range []int{0, 1, 250, 10_000} {
		if err := ValidateRate(valid); err != nil {
			t.Fatalf("ValidateRate(%d): unexpected error %v", valid, err)
		}
	}
	for _, invalid := range []int{-1, 10_001, 65_536} {
		if err := ValidateRate(invalid); err == nil {
			t.Fatalf("ValidateRate(%d): expected error", invalid)
		}
	}
}
