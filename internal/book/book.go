// Package book defines the canonical order-book snapshot shared by the
// Streamer (writer), the Order-Book Store (transport), and the Pair Scanner
// (reader). It is intentionally dependency-free: every other component
// imports book for its types but book imports nothing of theirs.
package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDecode mirrors the spec's DecodeError: a corrupt payload in the store
// or pub/sub channel.
var ErrDecode = errors.New("book: decode error")

// Level is a single (price, size) order-book level. By the time a Level
// reaches a Snapshot it must satisfy Price > 0 and SizeBase > 0; malformed
// levels are dropped at ingestion (§3 Price Level).
type Level struct {
	Price    float64
	SizeBase float64
}

// MarshalJSON renders a Level as the canonical [price, size] pair used by
// the wire format (§6 "Snapshot JSON").
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.SizeBase})
}

// UnmarshalJSON accepts the canonical [price, size] pair.
func (l *Level) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: level: %v", ErrDecode, err)
	}
	l.Price = pair[0]
	l.SizeBase = pair[1]
	return nil
}

// Snapshot is the canonical Order-Book Snapshot of §3: asks strictly
// ascending by price, bids strictly descending, each truncated to at most
// D levels, with a venue-or-ingestion timestamp.
type Snapshot struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	TsMs     int64   `json:"ts"`
	Asks     []Level `json:"asks"`
	Bids     []Level `json:"bids"`
}

// Sanitize drops malformed levels (non-positive price or size), sorts asks
// ascending and bids descending, and truncates each side to depth. It is
// idempotent: calling it twice yields the same result (I1).
func Sanitize(asks, bids []Level, depth int) (cleanAsks, cleanBids []Level) {
	cleanAsks = sanitizeSide(asks, false, depth)
	cleanBids = sanitizeSide(bids, true, depth)
	return
}

func sanitizeSide(levels []Level, descending bool, depth int) []Level {
	out := make([]Level, 0, len(levels))
	for _, lv := range levels {
		if lv.Price > 0 && lv.SizeBase > 0 {
			out = append(out, lv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	// Strictly ascending/descending: collapse duplicate price levels, keeping
	// the first level at that price in sorted order. The sort is by price
	// only and not stable, so which of several equal-price levels survives is
	// not defined (venues don't usually repeat a price but malformed feeds
	// occasionally do).
	dedup := out[:0:0]
	for i, lv := range out {
		if i > 0 && lv.Price == out[i-1].Price {
			continue
		}
		dedup = append(dedup, lv)
	}
	if depth > 0 && len(dedup) > depth {
		dedup = dedup[:depth]
	}
	return dedup
}

// Validate re-asserts the strict ordering invariant on the read side,
// defensively, after decoding (§4.2).
func (s Snapshot) Validate() error {
	for i := 1; i < len(s.Asks); i++ {
		if s.Asks[i].Price <= s.Asks[i-1].Price {
			return fmt.Errorf("%w: asks not strictly ascending at %d", ErrDecode, i)
		}
	}
	for i := 1; i < len(s.Bids); i++ {
		if s.Bids[i].Price >= s.Bids[i-1].Price {
			return fmt.Errorf("%w: bids not strictly descending at %d", ErrDecode, i)
		}
	}
	for _, lv := range s.Asks {
		if lv.Price <= 0 || lv.SizeBase <= 0 {
			return fmt.Errorf("%w: non-positive ask level", ErrDecode)
		}
	}
	for _, lv := range s.Bids {
		if lv.Price <= 0 || lv.SizeBase <= 0 {
			return fmt.Errorf("%w: non-positive bid level", ErrDecode)
		}
	}
	return nil
}

// Encode produces the canonical byte form used as the store's value and the
// pub/sub payload (§6 "Snapshot JSON").
func Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses the canonical byte form and re-validates ordering (§4.2
// "Orderings on the read side are re-asserted after decoding").
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: snapshot: %v", ErrDecode, err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// BestAsk returns the lowest ask price, or 0 if the book has no asks.
func (s Snapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// BestBid returns the highest bid price, or 0 if the book has no bids.
func (s Snapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// Empty reports whether either side of the book has no viable levels
// (§4.5 step 2, the EmptyBook condition).
func (s Snapshot) Empty() bool {
	return len(s.Asks) == 0 || len(s.Bids) == 0
}
