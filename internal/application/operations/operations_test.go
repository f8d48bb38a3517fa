package operations

import (
	"context"
	"testing"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/shopspring/decimal"
)

var _ ports.Adapter = (*fakeAdapter)(nil)

func products(skus ...string) []domain.Product {
	out := make([]domain.Product, len(skus))
	for i, sku := range skus {
		out[i] = domain.Product{SKU: sku, Title: "Item " + sku, Price: decimal.NewFromInt(10), Quantity: 1}
	}
	return out
}

func TestCreateIsolatesItemFailures(t *testing.T) {
	f := &fakeAdapter{failing: map[string]bool{"B": true}}
	res := NewProductOperation(f).Create(context.Background(), products("A", "B", "C"))

	if res.Success {
		t.Error("batch with a failed item must not report success")
	}
	if res.ProcessedCount != 2 || res.FailedCount != 1 || len(res.Items) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if !res.Items[0].Success || res.Items[1].Success || !res.Items[2].Success {
		t.Errorf("items = %+v", res.Items)
	}
	if res.Items[0].ID != "id-A" {
		t.Errorf("id = %q", res.Items[0].ID)
	}
	if failures := res.Failures(); len(failures) != 1 || failures[0].Error.Kind != domain.ErrServerError {
		t.Errorf("failures = %+v", failures)
	}
}

func TestValidationRejectsLocally(t *testing.T) {
	f := &fakeAdapter{}
	items := products("A")
	items = append(items,
		domain.Product{Title: "no sku"},
		domain.Product{SKU: "NEG", Title: "Negative", Price: decimal.NewFromInt(-1)},
		domain.Product{SKU: "QTY", Title: "Negative stock", Quantity: -2},
	)

	res := NewProductOperation(f).Create(context.Background(), items)
	if res.ProcessedCount != 1 || res.FailedCount != 3 {
		t.Fatalf("result = %+v", res)
	}
	for _, item := range res.Items[1:] {
		if item.Error == nil || item.Error.Kind != domain.ErrValidation {
			t.Errorf("item %q error = %+v", item.Key, item.Error)
		}
	}
	if f.calls != 1 {
		t.Errorf("adapter called %d times, want 1", f.calls)
	}
}

func TestValidationDisabledPassesThrough(t *testing.T) {
	f := &fakeAdapter{}
	res := NewProductOperation(f).WithValidation(false).Create(context.Background(), []domain.Product{{Title: "no sku"}})
	if !res.Success || f.calls != 1 {
		t.Fatalf("result = %+v calls = %d", res, f.calls)
	}
}

func TestDryRunMakesNoCalls(t *testing.T) {
	f := &fakeAdapter{}
	res := NewProductOperation(f).WithDryRun(true).Create(context.Background(), products("A", "B"))
	if !res.Success || res.ProcessedCount != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, item := range res.Items {
		if !item.DryRun {
			t.Errorf("item %q not marked dry run", item.Key)
		}
	}
	if f.calls != 0 {
		t.Errorf("dry run made %d adapter calls", f.calls)
	}

	inv := NewInventoryOperation(f).WithDryRun(true).Sync(context.Background(), []domain.InventoryUpdate{{SKU: "A", Quantity: 3}})
	if !inv.Success || f.calls != 0 {
		t.Errorf("inventory dry run = %+v calls = %d", inv, f.calls)
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := NewProductOperation(&fakeAdapter{})
	sized := base.WithBatchSize(5)
	dry := sized.WithDryRun(true)

	if base.BatchSize() != DefaultBatchSize || base.DryRun() {
		t.Errorf("base changed: batch=%d dry=%v", base.BatchSize(), base.DryRun())
	}
	if sized.BatchSize() != 5 || sized.DryRun() {
		t.Errorf("sized changed: batch=%d dry=%v", sized.BatchSize(), sized.DryRun())
	}
	if dry.BatchSize() != 5 || !dry.DryRun() {
		t.Errorf("dry = batch %d dry %v", dry.BatchSize(), dry.DryRun())
	}
	if base.WithBatchSize(0).BatchSize() != DefaultBatchSize {
		t.Error("a non-positive batch size must be ignored")
	}
}

func TestCancelledContextStopsBetweenBatches(t *testing.T) {
	f := &fakeAdapter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewProductOperation(f).WithBatchSize(2).Create(ctx, products("A", "B", "C"))
	if !res.Cancelled || len(res.Items) != 0 || f.calls != 0 {
		t.Fatalf("result = %+v calls = %d", res, f.calls)
	}
}

func TestDeleteAndInventorySync(t *testing.T) {
	f := &fakeAdapter{failing: map[string]bool{"gone": true}}
	del := NewProductOperation(f).Delete(context.Background(), []string{"1", "gone", ""})
	if del.ProcessedCount != 1 || del.FailedCount != 2 {
		t.Errorf("delete = %+v", del)
	}

	inv := NewInventoryOperation(f).Sync(context.Background(), []domain.InventoryUpdate{
		{SKU: "A", Quantity: 4},
		{Quantity: 1},
	})
	if inv.ProcessedCount != 1 || inv.FailedCount != 1 || inv.Items[0].ID != "item-A" {
		t.Errorf("inventory = %+v", inv)
	}
}

func TestOrderFetch(t *testing.T) {
	f := &fakeAdapter{orders: map[string]domain.Order{
		"1": {ID: "1", Status: "open"},
		"3": {ID: "3", Status: "open"},
	}}
	res, orders := NewOrderOperation(f).Fetch(context.Background(), []string{"1", "2", "3"})
	if res.ProcessedCount != 2 || res.FailedCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(orders) != 2 || orders[0].ID != "1" || orders[1].ID != "3" {
		t.Errorf("orders = %+v", orders)
	}
}
