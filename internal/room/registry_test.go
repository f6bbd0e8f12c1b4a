package room

import (
	"testing"

	"lobbyplatform/internal/catalog"
)

func newTestRegistry(t *testing.T) (*Registry, catalog.Catalog) {
	t.Helper()
	cat, err := catalog.NewJSONCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONCatalog: %v", err)
	}
	if _, err := cat.AddGame("dev1", "g", "d", "1.0.0", 2); err != nil {
		t.Fatalf("AddGame: %v", err)
	}
	return NewRegistry(cat), cat
}

// TestRoomLifecycle exercises spec §8 scenario 4 verbatim.
func TestRoomLifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	created, err := reg.CreateRoom("p1", "1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if created.ID != "1" {
		t.Fatalf("room id = %q, want \"1\"", created.ID)
	}

	if r := reg.JoinRoom("1", "p2"); !r.OK {
		t.Fatalf("p2 join should succeed, got %+v", r)
	}
	if r := reg.JoinRoom("1", "p3"); r.OK || r.Reason != ReasonFull {
		t.Fatalf("p3 join should fail full, got %+v", r)
	}

	if r := reg.LeaveRoom("1", "p2"); !r.OK {
		t.Fatalf("p2 leave: %+v", r)
	}
	room, ok := reg.GetRoom("1")
	if !ok || len(room.Players) != 1 || room.Owner != "p1" {
		t.Fatalf("unexpected room state after p2 leaves: %+v", room)
	}

	if r := reg.LeaveRoom("1", "p1"); !r.OK {
		t.Fatalf("p1 leave: %+v", r)
	}
	if rooms := reg.ListRooms(); len(rooms) != 0 {
		t.Fatalf("ListRooms after last leave = %+v, want empty", rooms)
	}
}

// TestStartRequiresFullRosterAndOwner exercises spec §8 scenario 5.
func TestStartRequiresFullRosterAndOwner(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateRoom("p1", "1")

	if _, r := reg.StartGame("1", "p1"); r.OK || r.Reason != ReasonNotEnoughPlayer {
		t.Fatalf("start with one player should fail not-enough-players, got %+v", r)
	}

	reg.JoinRoom("1", "p2")
	if _, r := reg.StartGame("1", "p2"); r.OK || r.Reason != ReasonNotOwner {
		t.Fatalf("start by non-owner should fail, got %+v", r)
	}

	room, r := reg.StartGame("1", "p1")
	if !r.OK || !room.Started {
		t.Fatalf("start by owner with full roster should succeed, got room=%+v r=%+v", room, r)
	}
}

// TestDisconnectReconciliationPromotesOwner exercises spec §8 scenario 6.
func TestDisconnectReconciliationPromotesOwner(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateRoom("p1", "1")
	reg.JoinRoom("1", "p2")

	affected := reg.LeaveAll("p1")
	if len(affected) != 1 || affected[0] != "1" {
		t.Fatalf("LeaveAll should report room 1 affected, got %v", affected)
	}

	room, ok := reg.GetRoom("1")
	if !ok {
		t.Fatal("room should still exist with p2 remaining")
	}
	if room.Owner != "p2" || len(room.Players) != 1 || room.Players[0] != "p2" {
		t.Fatalf("unexpected room state: %+v", room)
	}
}

func TestRemoveRoomOnSupervisedProcessExit(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateRoom("p1", "1")
	reg.JoinRoom("1", "p2")
	reg.StartGame("1", "p1")

	reg.RemoveRoom("1")

	if rooms := reg.ListRooms(); len(rooms) != 0 {
		t.Fatalf("room should be gone after supervised process exit, got %+v", rooms)
	}
}
