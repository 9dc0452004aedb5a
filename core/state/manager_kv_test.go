package state

import (
	"math/big"
	"testing"

	"cdpchain/storage"
)

func newTestManager(t *testing.T) (*Manager, *Journal, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	journal := NewJournal(db)
	return NewManager(journal), journal, db
}

func TestKVHelpers(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if err := mgr.KVPut([]byte("answer"), big.NewInt(42)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := new(big.Int)
	ok, err := mgr.KVGet([]byte("answer"), got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Int64() != 42 {
		t.Fatalf("expected 42, got %s", got)
	}
	if ok, _ := mgr.KVGet([]byte("missing"), nil); ok {
		t.Fatalf("missing key reported present")
	}
	if err := mgr.KVDelete([]byte("answer")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("answer"), nil); ok {
		t.Fatalf("deleted key still present")
	}
	if err := mgr.KVPut(nil, 1); err == nil {
		t.Fatalf("empty key should be rejected")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	key := []byte("index")
	for _, v := range [][]byte{{1}, {2}, {1}, {3}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 3 || list[0][0] != 1 || list[2][0] != 3 {
		t.Fatalf("unexpected list %v", list)
	}

	var empty [][]byte
	if err := mgr.KVGetList([]byte("nothing"), &empty); err != nil {
		t.Fatalf("get empty list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("missing list should decode as empty slice")
	}
}

func TestRoles(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if err := mgr.SetRole("minters", []byte("b")); err != nil {
		t.Fatalf("set role: %v", err)
	}
	_ = mgr.SetRole("minters", []byte("a"))
	_ = mgr.SetRole("minters", []byte("a"))

	members, _ := mgr.RoleMembers("minters")
	if len(members) != 2 || string(members[0]) != "a" {
		t.Fatalf("members should be sorted and unique, got %q", members)
	}
	if ok, _ := mgr.HasRole("minters", []byte("b")); !ok {
		t.Fatalf("expected b to hold role")
	}
	if err := mgr.RemoveRole("minters", []byte("b")); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if ok, _ := mgr.HasRole("minters", []byte("b")); ok {
		t.Fatalf("b should have been removed")
	}
	_ = mgr.RemoveRole("minters", []byte("a"))
	members, _ = mgr.RoleMembers("minters")
	if len(members) != 0 {
		t.Fatalf("expected empty role, got %q", members)
	}
}
