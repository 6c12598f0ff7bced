package book

import "testing"

func TestSanitize_DropsMalformedAndSorts(t *testing.T) {
	asks := []Level{
		{Price: 101, SizeBase: 1},
		{Price: -5, SizeBase: 1},  // dropped: non-positive price
		{Price: 100, SizeBase: 0}, // dropped: non-positive size
		{Price: 100, SizeBase: 2},
	}
	bids := []Level{
		{Price: 98, SizeBase: 1},
		{Price: 99, SizeBase: 2},
		{Price: 99, SizeBase: 0}, // dropped
	}
	cleanAsks, cleanBids := Sanitize(asks, bids, 50)

	if len(cleanAsks) != 2 {
		t.Fatalf("want 2 clean asks, got %d (%v)", len(cleanAsks), cleanAsks)
	}
	if cleanAsks[0].Price != 100 || cleanAsks[1].Price != 101 {
		t.Errorf("asks not strictly ascending: %v", cleanAsks)
	}
	if len(cleanBids) != 2 {
		t.Fatalf("want 2 clean bids, got %d (%v)", len(cleanBids), cleanBids)
	}
	if cleanBids[0].Price != 99 || cleanBids[1].Price != 98 {
		t.Errorf("bids not strictly descending: %v", cleanBids)
	}
}

func TestSanitize_TruncatesToDepth(t *testing.T) {
	var asks []Level
	for i := 0; i < 100; i++ {
		asks = append(asks, Level{Price: float64(100 + i), SizeBase: 1})
	}
	clean, _ := Sanitize(asks, nil, 10)
	if len(clean) != 10 {
		t.Fatalf("want depth-truncated to 10, got %d", len(clean))
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	asks, bids := Sanitize(
		[]Level{{Price: 100, SizeBase: 1}, {Price: 101, SizeBase: 2}},
		[]Level{{Price: 99, SizeBase: 1}, {Price: 98, SizeBase: 2}},
		50,
	)
	s := Snapshot{Exchange: "kraken", Symbol: "BTC/EUR", TsMs: 1700000000000, Asks: asks, Bids: bids}

	enc, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	enc2, err := Encode(dec)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(enc) != string(enc2) {
		t.Errorf("round-trip mismatch:\n%s\nvs\n%s", enc, enc2)
	}
}

func TestDecode_RejectsNonStrictOrdering(t *testing.T) {
	// Hand-crafted payload with a non-strictly-ascending ask side.
	raw := []byte(`{"exchange":"x","symbol":"BTC/EUR","ts":1,"asks":[[100,1],[100,1]],"bids":[]}`)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected decode error for non-strict ask ordering")
	}
}

func TestSnapshot_EmptyAndBestPrices(t *testing.T) {
	s := Snapshot{}
	if !s.Empty() {
		t.Fatal("zero-value snapshot should be Empty()")
	}
	s.Asks = []Level{{Price: 100, SizeBase: 1}}
	s.Bids = []Level{{Price: 99, SizeBase: 1}}
	if s.Empty() {
		t.Fatal("snapshot with both sides populated should not be Empty()")
	}
	if s.BestAsk() != 100 || s.BestBid() != 99 {
		t.Errorf("best ask/bid mismatch: %v / %v", s.BestAsk(), s.BestBid())
	}
}
