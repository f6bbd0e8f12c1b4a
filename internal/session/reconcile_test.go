package session

import (
	"path/filepath"
	"testing"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/room"
	"lobbyplatform/internal/transfer"
)

// TestReconcileDisconnect exercises spec §8 scenario 6: owner disconnects,
// room survives with the other player promoted, and the owner no longer
// shows up as online.
func TestReconcileDisconnect(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.NewJSONCatalog(dir)
	if err != nil {
		t.Fatalf("NewJSONCatalog: %v", err)
	}
	cat.Register("p1", "pw", catalog.RolePlayer)
	cat.Register("p2", "pw", catalog.RolePlayer)
	cat.Login("p1", "pw", catalog.RolePlayer, "")
	cat.Login("p2", "pw", catalog.RolePlayer, "")
	cat.AddGame("dev1", "g", "d", "1.0.0", 2)

	rooms := room.NewRegistry(cat)
	rooms.CreateRoom("p1", "1")
	rooms.JoinRoom("1", "p2")

	mgr, err := transfer.NewManager(filepath.Join(dir, "staging"), filepath.Join(dir, "storage"), 4096, cat)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mgr.InitUpload("p1", 100)

	reconciler := NewReconciler(rooms, cat, mgr, nil)

	sess := New()
	sess.Bind("p1", catalog.RolePlayer)

	reconciler.Reconcile(sess)

	r, ok := rooms.GetRoom("1")
	if !ok {
		t.Fatal("room should still exist with p2 remaining")
	}
	if r.Owner != "p2" || len(r.Players) != 1 || r.Players[0] != "p2" {
		t.Fatalf("unexpected room state: %+v", r)
	}

	online := cat.ListOnlineUsers()
	for _, u := range online {
		if u == "p1" {
			t.Fatal("p1 should no longer be online after reconciliation")
		}
	}

	if _, _, loggedIn := sess.User(); loggedIn {
		t.Fatal("session should be unbound after reconciliation")
	}
}

func TestReconcileNoopWhenNotLoggedIn(t *testing.T) {
	dir := t.TempDir()
	cat, _ := catalog.NewJSONCatalog(dir)
	rooms := room.NewRegistry(cat)
	mgr, err := transfer.NewManager(filepath.Join(dir, "staging"), filepath.Join(dir, "storage"), 4096, cat)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	reconciler := NewReconciler(rooms, cat, mgr, nil)

	sess := New()
	reconciler.Reconcile(sess) // must not panic on a never-logged-in session
}
