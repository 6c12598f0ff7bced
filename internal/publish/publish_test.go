package publish

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/matthijsko/arbitrage-bot/internal/scanner"
)

type fakeSink struct {
	published []string
	channel   string
	streamed  []string
	stream    string
}

func (f *fakeSink) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel = channel
	f.published = append(f.published, string(payload))
	return nil
}

func (f *fakeSink) AppendStream(_ context.Context, stream string, payload []byte, _ int64) error {
	f.stream = stream
	f.streamed = append(f.streamed, string(payload))
	return nil
}

func TestPublish_RefusesEmptyBatch(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, "opps", "opps_stream")
	if err := p.Publish(context.Background(), nil, 5); err == nil {
		t.Fatal("expected error publishing empty batch")
	}
	if len(sink.published) != 0 {
		t.Fatal("empty batch must not reach the channel")
	}
}

func TestPublish_SerializesAndFansOut(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, "opps", "opps_stream")
	items := []Item{{Symbol: "BTC/EUR", BuyExchange: "a", SellExchange: "b", OK: true, NetProfit: 1.5}}
	if err := p.Publish(context.Background(), items, 5); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sink.published) != 1 || len(sink.streamed) != 1 {
		t.Fatalf("expected one publish and one stream append, got %d/%d", len(sink.published), len(sink.streamed))
	}
	if sink.channel != "opps" || sink.stream != "opps_stream" {
		t.Fatalf("unexpected channel/stream: %q/%q", sink.channel, sink.stream)
	}
	var batch Batch
	if err := json.Unmarshal([]byte(sink.published[0]), &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].Symbol != "BTC/EUR" {
		t.Fatalf("unexpected batch contents: %+v", batch)
	}
}

func TestPublish_TruncatesToTopN(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, "opps", "opps_stream")
	items := []Item{
		{Symbol: "BTC/EUR", OK: true, NetProfit: 3},
		{Symbol: "ETH/EUR", OK: true, NetProfit: 2},
		{Symbol: "SOL/EUR", OK: true, NetProfit: 1},
	}
	if err := p.Publish(context.Background(), items, 2); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	var batch Batch
	if err := json.Unmarshal([]byte(sink.published[0]), &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("expected 2 items after topN truncation, got %d", len(batch.Items))
	}
}

func TestFromOpportunity_MapsFields(t *testing.T) {
	o := scanner.Opportunity{Symbol: "BTC/EUR", BuyExchange: "alpha", SellExchange: "beta", OK: true}
	item := FromOpportunity(o)
	if item.Symbol != "BTC/EUR" || item.BuyExchange != "alpha" || item.SellExchange != "beta" {
		t.Fatalf("unexpected flattened item: %+v", item)
	}
}
