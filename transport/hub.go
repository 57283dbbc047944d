// Package transport implements the collaborator contract the CRDT core
// expects from its network layer (§6): a way to connect and disconnect
// replicas, assigning each a siteId, and a way to broadcast Messages to
// every other connected replica.
package transport

import (
	"sync"

	"github.com/sumanthd032/collabtext/crdt"
)

// Hub is the reference broadcast relay from §6: it tracks connected
// replicas and a FIFO buffer of sent Messages, and DispatchMessages
// delivers every buffered Message to every connected replica other than
// the one that sent it, then clears the buffer. transport.Server uses a
// Hub only to assign a siteId to each document's canonical replica; its
// websocket fan-out does not go through Send or DispatchMessages.
type Hub struct {
	mu         sync.Mutex
	nextSiteID int
	freeIDs    []int
	replicas   map[int]*crdt.Replica
	buffer     []crdt.Message
}

// NewHub returns an empty Hub with no connected replicas.
func NewHub() *Hub {
	return &Hub{replicas: make(map[int]*crdt.Replica)}
}

// Connect assigns r a siteId unique among currently-connected replicas,
// sets r.SiteID accordingly, and registers it to receive future broadcasts
// (§6's connect(replica) → siteId).
func (h *Hub) Connect(r *crdt.Replica) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var id int
	if n := len(h.freeIDs); n > 0 {
		id = h.freeIDs[n-1]
		h.freeIDs = h.freeIDs[:n-1]
	} else {
		id = h.nextSiteID
		h.nextSiteID++
	}
	r.SiteID = id
	h.replicas[id] = r
	return id
}

// Disconnect removes r from the Hub. Its siteId may be reused by a later
// Connect call, but never while r (or any other currently-connected
// replica) still holds it.
func (h *Hub) Disconnect(r *crdt.Replica) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.replicas[r.SiteID]; !ok {
		return
	}
	delete(h.replicas, r.SiteID)
	h.freeIDs = append(h.freeIDs, r.SiteID)
}

// Send enqueues msg for delivery to every other connected replica on the
// next DispatchMessages call. Send itself returns nothing; an error from
// the eventual Process call is returned by DispatchMessages.
func (h *Hub) Send(msg crdt.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = append(h.buffer, msg)
}

// DispatchMessages delivers every buffered Message to every connected
// replica whose siteId differs from the message's origin, then clears the
// buffer. A Message originating at site S is never delivered back to S
// (§5's delivery requirement).
func (h *Hub) DispatchMessages() error {
	h.mu.Lock()
	pending := h.buffer
	h.buffer = nil
	h.mu.Unlock()

	for _, msg := range pending {
		h.mu.Lock()
		targets := make([]*crdt.Replica, 0, len(h.replicas))
		for id, r := range h.replicas {
			if id != msg.OriginSiteID {
				targets = append(targets, r)
			}
		}
		h.mu.Unlock()

		for _, r := range targets {
			if err := r.Process(msg); err != nil {
				return err
			}
		}
	}
	return nil
}
