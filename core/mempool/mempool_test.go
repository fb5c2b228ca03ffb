package mempool

import (
	"testing"

	"dharohar/core/block"
)

func TestMempoolKeepsArrivalOrder(t *testing.T) {
	mp := NewMempool()
	for _, id := range []string{"tx3", "tx1", "tx2"} {
		if !mp.AddTx(block.Transaction{ID: id}) {
			t.Fatalf("failed to add %s", id)
		}
	}
	got := mp.GetAllTxs()
	if len(got) != 3 || got[0].ID != "tx3" || got[1].ID != "tx1" || got[2].ID != "tx2" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestMempoolRejectsDuplicates(t *testing.T) {
	mp := NewMempool()
	mp.AddTx(block.Transaction{ID: "tx1"})
	if mp.AddTx(block.Transaction{ID: "tx1"}) {
		t.Error("duplicate tx1 should be rejected")
	}
	if mp.Len() != 1 {
		t.Errorf("expected 1 pending tx, got %d", mp.Len())
	}
}

func TestMempoolRemoveTxs(t *testing.T) {
	mp := NewMempool()
	for _, id := range []string{"a", "b", "c", "d"} {
		mp.AddTx(block.Transaction{ID: id})
	}
	if n := mp.RemoveTxs([]string{"a", "c", "zz"}); n != 2 {
		t.Errorf("expected 2 removals, got %d", n)
	}
	if _, ok := mp.GetTx("a"); ok {
		t.Error("a should have been removed")
	}
	got := mp.GetAllTxs()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
		t.Errorf("unexpected remainder: %+v", got)
	}
	if n := mp.RemoveTxs(nil); n != 0 {
		t.Errorf("expected no removals, got %d", n)
	}
}
