package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sumanthd032/collabtext/config"
	"github.com/sumanthd032/collabtext/crdt"
	"github.com/sumanthd032/collabtext/discovery"
)

// instanceID identifies this agent process in logs, a uuid per the
// IDENTITY module's reservation of google/uuid for peer-session-grained
// identifiers (SymbolIDs stay the spec's compact {siteID,counter} pair).
var instanceID = uuid.NewString()

// client is one connected websocket — either the local browser UI or a
// peer agent's outbound Redial connection relaying into this one.
// Mirrors the teacher's own Client/Hub register/unregister/broadcast
// channel trio, generalized to broadcast crdt.Message frames instead of
// raw Op bytes.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// peerHub fans out every locally-applied crdt.Message to every other
// connected client (browser tabs and peer agents alike), after merging it
// into the shared replica. Grounded on the teacher's agent/main.go Hub.
type peerHub struct {
	mu      sync.Mutex
	replica *crdt.Replica
	clients map[*client]bool
}

func newPeerHub(replica *crdt.Replica) *peerHub {
	return &peerHub{replica: replica, clients: make(map[*client]bool)}
}

func (h *peerHub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Printf("agent: client registered, total %d", len(h.clients))
}

func (h *peerHub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// apply merges payload into the shared replica and fans it out to every
// client other than from, the connection (browser or peer) the frame
// arrived on.
func (h *peerHub) apply(payload []byte, from *client) {
	var msg crdt.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("agent: malformed message: %v", err)
		return
	}

	h.mu.Lock()
	err := h.replica.Process(msg)
	var peers []*client
	if err == nil {
		for c := range h.clients {
			if c != from {
				peers = append(peers, c)
			}
		}
	}
	h.mu.Unlock()

	if err != nil {
		log.Printf("agent: apply error: %v", err)
		return
	}
	for _, c := range peers {
		select {
		case c.send <- payload:
		default:
			log.Printf("agent: dropping frame for slow client")
		}
	}
}

// siteIDFromInstance derives a replica siteId from this agent's instance
// uuid (FNV-1a, folded positive), so two agents on the same LAN almost
// certainly get distinct siteIds without needing a central Hub to issue
// them — the peer mesh has no connect() authority to ask.
func siteIDFromInstance(instanceID string) int {
	var h uint32 = 2166136261
	for i := 0; i < len(instanceID); i++ {
		h ^= uint32(instanceID[i])
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func serveWs(hub *peerHub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	runClient(hub, conn)
}

// runClient drives one already-established connection's read/write pumps
// until it closes, registering and unregistering it with hub. Shared by
// both inbound browser connections and outbound peer connections opened
// by discovery.Redial, mirroring the teacher's Client readPump/writePump
// split.
func runClient(hub *peerHub, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 256)}
	hub.register(c)
	go writePump(c)
	readPump(hub, c)
}

func readPump(hub *peerHub, c *client) {
	defer func() {
		hub.unregister(c)
		c.conn.Close()
	}()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		hub.apply(message, c)
	}
}

func writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func main() {
	cfg := config.LoadAgent()

	peers, err := discovery.OpenPeerStore(cfg.PeerDBPath)
	if err != nil {
		log.Fatalf("agent: could not open peer store: %v", err)
	}
	defer peers.Close()

	siteID := siteIDFromInstance(instanceID)
	replica := crdt.NewReplicaDefault(siteID, rand.New(rand.NewSource(int64(siteID))))
	hub := newPeerHub(replica)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := discovery.Advertise(ctx, cfg.ServiceName, cfg.Port); err != nil {
		log.Fatalf("agent: failed to advertise: %v", err)
	}

	dial := discovery.DialWebsocket(cfg.DocID)
	seen := make(map[string]bool)
	var seenMu sync.Mutex

	// connectPeer starts (at most once per instance name) a Redial loop
	// for p, used both for peers remembered from a previous run and for
	// ones Browse discovers fresh this run.
	connectPeer := func(p discovery.Peer) {
		seenMu.Lock()
		already := seen[p.Instance]
		seen[p.Instance] = true
		seenMu.Unlock()
		if already {
			return
		}
		log.Printf("agent: connecting to peer %s at %s:%d", p.Instance, p.Addr, p.Port)
		go discovery.Redial(ctx, p, dial, func(conn *websocket.Conn) {
			runClient(hub, conn)
		})
	}

	known, err := peers.All()
	if err != nil {
		log.Printf("agent: could not load remembered peers: %v", err)
	}
	for _, p := range known {
		connectPeer(p)
	}

	go func() {
		err := discovery.Browse(ctx, cfg.ServiceName, func(p discovery.Peer) {
			if err := peers.Remember(p); err != nil {
				log.Printf("agent: could not remember peer %s: %v", p.Instance, err)
			}
			connectPeer(p)
		})
		if err != nil {
			log.Printf("agent: mdns browse stopped: %v", err)
		}
	}()

	fs := http.FileServer(http.Dir(cfg.UIDir))
	http.Handle("/", fs)
	http.HandleFunc("/ws/"+cfg.DocID, func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	log.Printf("CollabText agent %s running on %s, document %s...", instanceID, cfg.Addr, cfg.DocID)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
