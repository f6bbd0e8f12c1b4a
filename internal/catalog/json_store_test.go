package catalog

import "testing"

func newTestCatalog(t *testing.T) Catalog {
	t.Helper()
	c, err := NewJSONCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONCatalog: %v", err)
	}
	return c
}

func TestRegisterLoginConflict(t *testing.T) {
	c := newTestCatalog(t)

	if r := c.Register("alice", "p1", RolePlayer); !r.OK {
		t.Fatalf("first register should succeed, got %+v", r)
	}
	if r := c.Register("alice", "p1", RolePlayer); r.OK || r.Reason != ReasonExists {
		t.Fatalf("second register should fail with exists, got %+v", r)
	}

	if r := c.Login("alice", "p2", RolePlayer, ""); r.OK || r.Reason != ReasonBadPassword {
		t.Fatalf("login with wrong password should fail, got %+v", r)
	}
	if r := c.Login("alice", "p1", RolePlayer, ""); !r.OK {
		t.Fatalf("login with right password should succeed, got %+v", r)
	}
	if r := c.Login("alice", "p1", RolePlayer, ""); r.OK || r.Reason != ReasonAlreadyOnline {
		t.Fatalf("second concurrent login should fail already-online, got %+v", r)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	c.Register("bob", "p1", RolePlayer)
	c.Login("bob", "p1", RolePlayer, "")

	if r := c.Logout("bob", RolePlayer); !r.OK {
		t.Fatalf("logout should succeed, got %+v", r)
	}
	if r := c.Logout("bob", RolePlayer); !r.OK {
		t.Fatalf("second logout should still be ok (idempotent), got %+v", r)
	}
}

func TestRegisterLoginLogoutLoginRoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	if r := c.Register("carol", "pw", RolePlayer); !r.OK {
		t.Fatalf("register: %+v", r)
	}
	if r := c.Login("carol", "pw", RolePlayer, ""); !r.OK {
		t.Fatalf("login 1: %+v", r)
	}
	if r := c.Logout("carol", RolePlayer); !r.OK {
		t.Fatalf("logout: %+v", r)
	}
	if r := c.Login("carol", "pw", RolePlayer, ""); !r.OK {
		t.Fatalf("login 2: %+v", r)
	}
}

func TestAddGameAllocatesMonotonicIDs(t *testing.T) {
	c := newTestCatalog(t)

	g1, err := c.AddGame("dev1", "g1", "d", "1.0.0", 2)
	if err != nil {
		t.Fatalf("AddGame: %v", err)
	}
	if g1.ID != "1" {
		t.Fatalf("first game id = %q, want \"1\"", g1.ID)
	}

	g2, err := c.AddGame("dev1", "g2", "d", "1.0.0", 4)
	if err != nil {
		t.Fatalf("AddGame: %v", err)
	}
	if g2.ID != "2" {
		t.Fatalf("second game id = %q, want \"2\"", g2.ID)
	}
}

func TestUpdateGameRequiresAuthorAndNewerVersion(t *testing.T) {
	c := newTestCatalog(t)
	g, _ := c.AddGame("dev1", "g", "d", "1.0.0", 2)

	if r := c.UpdateGame(g.ID, "dev2", "1.0.1", GameUpdate{}); r.OK {
		t.Fatalf("non-author update should fail, got %+v", r)
	}
	if r := c.UpdateGame(g.ID, "dev1", "1.0.0", GameUpdate{}); r.OK {
		t.Fatalf("same version update should fail, got %+v", r)
	}
	if r := c.UpdateGame(g.ID, "dev1", "0.9.9", GameUpdate{}); r.OK {
		t.Fatalf("older version update should fail, got %+v", r)
	}
	if r := c.UpdateGame(g.ID, "dev1", "1.0.1", GameUpdate{}); !r.OK {
		t.Fatalf("strictly newer version update should succeed, got %+v", r)
	}

	updated, err := c.GetGame(g.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if updated.Version != "1.0.1" {
		t.Fatalf("version = %q, want 1.0.1", updated.Version)
	}
}

func TestDeleteGameRequiresAuthor(t *testing.T) {
	c := newTestCatalog(t)
	g, _ := c.AddGame("dev1", "g", "d", "1.0.0", 2)

	if r := c.DeleteGame(g.ID, "dev2"); r.OK {
		t.Fatalf("non-author delete should fail, got %+v", r)
	}
	if r := c.DeleteGame(g.ID, "dev1"); !r.OK {
		t.Fatalf("author delete should succeed, got %+v", r)
	}
	if _, err := c.GetGame(g.ID); err != ErrGameNotFound {
		t.Fatalf("deleted game should be gone, got err=%v", err)
	}
}

func TestAddReviewValidatesRatingAndComputesAverage(t *testing.T) {
	c := newTestCatalog(t)
	g, _ := c.AddGame("dev1", "g", "d", "1.0.0", 2)

	if r := c.AddReview(g.ID, "alice", 0, "bad"); r.OK {
		t.Fatalf("rating 0 should be rejected")
	}
	if r := c.AddReview(g.ID, "alice", 6, "bad"); r.OK {
		t.Fatalf("rating 6 should be rejected")
	}
	if r := c.AddReview(g.ID, "alice", 4, "fun"); !r.OK {
		t.Fatalf("valid rating should succeed, got %+v", r)
	}
	if r := c.AddReview(g.ID, "bob", 2, "meh"); !r.OK {
		t.Fatalf("valid rating should succeed, got %+v", r)
	}

	games, err := c.ListGames()
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("len(games) = %d, want 1", len(games))
	}
	if avg := games[0].AverageRating(); avg != 3 {
		t.Fatalf("AverageRating() = %v, want 3", avg)
	}
}

func TestIncrementDownloadCount(t *testing.T) {
	c := newTestCatalog(t)
	g, _ := c.AddGame("dev1", "g", "d", "1.0.0", 2)

	if err := c.IncrementDownloadCount(g.ID); err != nil {
		t.Fatalf("IncrementDownloadCount: %v", err)
	}
	updated, _ := c.GetGame(g.ID)
	if updated.DownloadCount != 1 {
		t.Fatalf("DownloadCount = %d, want 1", updated.DownloadCount)
	}
}

func TestPlayerAndDeveloperNamespacesAreIndependent(t *testing.T) {
	c := newTestCatalog(t)
	if r := c.Register("shared", "p1", RolePlayer); !r.OK {
		t.Fatalf("player register: %+v", r)
	}
	if r := c.Register("shared", "p2", RoleDeveloper); !r.OK {
		t.Fatalf("developer register with same username should succeed, got %+v", r)
	}
	if r := c.Login("shared", "p1", RoleDeveloper, ""); r.OK {
		t.Fatalf("player password should not work for developer role")
	}
}
