package keycodec

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeChronologicalOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	instants := []time.Time{
		base,
		base.Add(1 * time.Millisecond),
		base.Add(999 * time.Millisecond),
		base.Add(1 * time.Second),
		base.Add(1 * time.Minute),
		base.Add(24 * time.Hour),
		base.AddDate(1, 0, 0),
	}

	var prev []byte
	for i, ts := range instants {
		key, err := Encode("BTC", ts)
		if err != nil {
			t.Fatalf("Encode failed for %v: %v", ts, err)
		}
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Errorf("key %d (%q) does not sort after key %d (%q)", i, key, i-1, prev)
		}
		prev = key
	}
}

func TestEncodeFixedWidthTimestamp(t *testing.T) {
	// Sub-second and single-digit fields must be zero padded or
	// lexicographic ordering breaks.
	early := time.Date(2024, 1, 2, 3, 4, 5, 6*int(time.Millisecond), time.UTC)
	late := time.Date(2024, 11, 12, 13, 14, 15, 160*int(time.Millisecond), time.UTC)

	earlyKey, _ := Encode("ETH", early)
	lateKey, _ := Encode("ETH", late)

	if len(earlyKey) != len(lateKey) {
		t.Fatalf("keys differ in length: %d vs %d", len(earlyKey), len(lateKey))
	}
	if bytes.Compare(earlyKey, lateKey) >= 0 {
		t.Errorf("earlier key %q does not sort before %q", earlyKey, lateKey)
	}
}

func TestEncodeNormalizesSymbol(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	lower, err := Encode("btc", ts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	upper, err := Encode("BTC", ts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(lower, upper) {
		t.Errorf("expected %q, got %q", upper, lower)
	}
}

func TestEncodeRejectsInvalidSymbols(t *testing.T) {
	ts := time.Now()

	for _, symbol := range []string{"", "  ", "BT!C", "!"} {
		if _, err := Encode(symbol, ts); err == nil {
			t.Errorf("Encode(%q) expected error, got nil", symbol)
		}
	}
}

func TestSymbolRangesDoNotInterleave(t *testing.T) {
	// BTC is a prefix of BTCX; the separator must still keep every BTC
	// key outside the BTCX range.
	late := time.Date(2099, 12, 31, 23, 59, 59, 999*int(time.Millisecond), time.UTC)
	early := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	btcLate, _ := Encode("BTC", late)
	btcxEarly, _ := Encode("BTCX", early)

	if bytes.Compare(btcLate, btcxEarly) >= 0 {
		t.Errorf("latest BTC key %q sorts inside BTCX range (first key %q)", btcLate, btcxEarly)
	}
}

func TestDecodeSymbol(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "observation key", key: "BTC!2024-03-01T10:00:00.000Z", want: "BTC"},
		{name: "no separator", key: "dht-seed", wantErr: true},
		{name: "leading separator", key: "!2024-03-01T10:00:00.000Z", wantErr: true},
		{name: "empty key", key: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeSymbol([]byte(tc.key))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got symbol %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSymbol failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key, err := Encode("doge", time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	symbol, err := DecodeSymbol(key)
	if err != nil {
		t.Fatalf("DecodeSymbol failed: %v", err)
	}
	if symbol != "DOGE" {
		t.Errorf("expected DOGE, got %q", symbol)
	}
}
