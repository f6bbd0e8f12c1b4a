package session

import (
	"context"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/presence"
	"lobbyplatform/internal/room"
	"lobbyplatform/internal/transfer"
)

// Reconciler runs the disconnect reconciliation routine (spec §4.6): on
// socket close, for any cause, it undoes everything the session was
// holding so no stuck is_online=true and no zombie room survive it.
// Per-step failures are logged and skipped, never surfaced (spec §7:
// "Disconnect reconciliation never fails visibly").
type Reconciler struct {
	rooms     *room.Registry
	catalog   catalog.Catalog
	transfers *transfer.Manager
	presence  *presence.Mirror
}

// NewReconciler wires the collaborators disconnect reconciliation touches:
// the room registry, the catalog, the transfer manager and the presence
// mirror. presenceMirror may be nil when Redis presence caching is
// disabled.
func NewReconciler(rooms *room.Registry, cat catalog.Catalog, transfers *transfer.Manager, presenceMirror *presence.Mirror) *Reconciler {
	return &Reconciler{
		rooms:     rooms,
		catalog:   cat,
		transfers: transfers,
		presence:  presenceMirror,
	}
}

// Reconcile runs all three steps of spec §4.6 for a closed socket's
// session. Safe to call even if the session never completed LOGIN.
func (r *Reconciler) Reconcile(sess *Session) {
	username, role, loggedIn := sess.User()
	if !loggedIn || username == "" {
		return
	}

	// (a) remove from all rooms; empty rooms deleted; promote players[0]
	// if the leaver was owner.
	affected := r.rooms.LeaveAll(username)
	for _, roomID := range affected {
		logging.Infof("session: %s left room %s via disconnect reconciliation", username, roomID)
	}

	// (b) Catalog.logout, idempotent.
	if result := r.catalog.Logout(username, role); !result.OK {
		logging.Warnf("session: disconnect logout for %s failed: %s", username, result.Reason)
	}
	r.presence.MarkOffline(context.Background(), username)

	// (c) drop in-progress transfers owned by this session.
	r.transfers.AbandonAllOwnedBy(username)

	sess.Unbind()
}
