package transport

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sumanthd032/collabtext/crdt"
	"github.com/sumanthd032/collabtext/store"
	"github.com/sumanthd032/collabtext/view"
)

// Broker fans a document's Messages out to other Server processes, so
// that clients connected to different processes behind a load balancer
// still converge (the PERSISTENCE/DOMAIN STACK module). It is optional: a
// nil Broker confines a document's collaboration to the clients directly
// connected to this process.
type Broker interface {
	Publish(docID string, payload []byte) error
	Subscribe(docID string, onMessage func(payload []byte)) (unsubscribe func(), err error)
}

// Store persists document snapshots and message logs so a Server can
// survive a restart without losing documents (the PERSISTENCE module). A
// nil Store keeps everything in memory only.
type Store interface {
	LoadSnapshot(docID string) (text string, ok bool, err error)
	LoadMessages(docID string) ([]crdt.Message, error)
	AppendMessage(docID string, msg crdt.Message) error
	SaveSnapshot(docID, text string) error
}

// document is one collaboratively-edited document on this process: one
// canonical crdt.Replica that every client's Message gets merged into (so
// the server always has an authoritative snapshot for persistence and the
// REST read endpoint), plus the set of websocket clients to fan raw wire
// frames out to. Unlike Hub, which is the reference relay for connecting
// many independent in-process Replicas, a document's websocket clients are
// not themselves Replicas known to this process — the editing logic that
// mints Messages runs at the network edge (§1's UI is out of core scope);
// this is a relay-plus-merge-point, grounded directly on the teacher's
// single-document handleConnections loop in server/main.go, generalized
// to many documents.
type document struct {
	mu      sync.Mutex
	replica *crdt.Replica
	clients map[*client]bool
	unsub   func()
}

// Server serves one websocket endpoint per document ID via gorilla/mux,
// mirroring the teacher's server/main.go upgrade-and-relay loop and
// asadovsky-goatee's server/hub/hub.go readPump/writePump split, extended
// to many documents and an optional Broker/Store.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	hub      *Hub // issues stable siteIds to each document's canonical replica

	mu   sync.Mutex
	docs map[string]*document

	broker Broker
	store  Store
}

// NewServer builds a Server. broker and store may be nil.
func NewServer(broker Broker, store Store) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		hub:      NewHub(),
		docs:     make(map[string]*document),
		broker:   broker,
		store:    store,
	}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/docs/{docID}", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/docs/{docID}/cursor", s.handleCursor).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/{docID}", s.handleWebsocket)
	return s
}

// RunSnapshotLoop periodically writes every open document's flattened text
// to the Store, so a document survives a crash between explicit saves
// instead of only being durable at the moment of the next edit. No-op if
// no Store is configured. Intended to run in its own goroutine for the
// lifetime of the process; returns when ctx is cancelled.
func (s *Server) RunSnapshotLoop(ctx context.Context, interval time.Duration) {
	if s.store == nil {
		return
	}
	store.NewSnapshotter(interval).Run(ctx, s.snapshotAll)
}

func (s *Server) snapshotAll() {
	s.mu.Lock()
	docs := make(map[string]*document, len(s.docs))
	for id, d := range s.docs {
		docs[id] = d
	}
	s.mu.Unlock()

	for docID, d := range docs {
		d.mu.Lock()
		text := d.replica.String()
		d.mu.Unlock()
		if err := s.store.SaveSnapshot(docID, text); err != nil {
			log.Printf("collabtext: periodic snapshot failed for %q: %v", docID, err)
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	d := s.documentFor(docID)
	d.mu.Lock()
	text := d.replica.String()
	d.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// handleCursor translates between a flat character offset and a (line,
// col) pair for docID, in whichever direction the caller supplies: an
// "offset" query parameter resolves to (line, col); "line" and "col"
// parameters resolve to an offset. Uses view.Resolve/view.Offset directly
// against the document's canonical replica.
func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	d := s.documentFor(docID)

	q := r.URL.Query()
	d.mu.Lock()
	defer d.mu.Unlock()

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		line, col := view.Resolve(d.replica, view.Cursor(offset))
		writeJSON(w, map[string]int{"line": line, "col": col})
		return
	}

	line, err1 := strconv.Atoi(q.Get("line"))
	col, err2 := strconv.Atoi(q.Get("col"))
	if err1 != nil || err2 != nil {
		http.Error(w, "must supply offset, or line and col", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"offset": int(view.Offset(d.replica, line, col))})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("collabtext: write json response: %v", err)
	}
}

// documentFor returns the document for docID, creating it (and, if a
// Store is configured, rehydrating its snapshot plus any messages logged
// after it) on first access.
func (s *Server) documentFor(docID string) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[docID]; ok {
		return d
	}

	replica := crdt.NewReplicaDefault(0, rand.New(rand.NewSource(hashSeed(docID))))
	s.hub.Connect(replica)

	d := &document{replica: replica, clients: make(map[*client]bool)}
	if s.store != nil {
		if text, ok, err := s.store.LoadSnapshot(docID); err != nil {
			log.Printf("collabtext: snapshot load failed for %q: %v", docID, err)
		} else if ok {
			seedDocumentFromSnapshot(d.replica, text)
		}
		if msgs, err := s.store.LoadMessages(docID); err != nil {
			log.Printf("collabtext: message replay load failed for %q: %v", docID, err)
		} else {
			for _, msg := range msgs {
				if err := d.replica.Process(msg); err != nil {
					log.Printf("collabtext: message replay failed for %q: %v", docID, err)
				}
			}
		}
	}
	if s.broker != nil {
		unsub, err := s.broker.Subscribe(docID, func(payload []byte) {
			s.applyAndFanOut(d, docID, payload, nil)
		})
		if err != nil {
			log.Printf("collabtext: broker subscribe failed for %q: %v", docID, err)
		} else {
			d.unsub = unsub
		}
	}
	s.docs[docID] = d
	return d
}

// seedDocumentFromSnapshot rehydrates replica's document from a persisted
// flat-text snapshot by replaying it as a sequence of local insertions.
// This is the simple, correct rehydration path: the allocator's own
// ordering guarantees produce a valid Position sequence regardless of
// what produced the original text.
func seedDocumentFromSnapshot(replica *crdt.Replica, text string) {
	line, col := 0, 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if _, err := replica.LocalInsert(line, col, ch); err != nil {
			log.Printf("collabtext: snapshot replay failed at byte %d: %v", i, err)
			return
		}
		if ch == '\n' {
			line, col = line+1, 0
		} else {
			col++
		}
	}
}

// hashSeed derives a stable per-document RNG seed from its ID (FNV-1a),
// so that a document's allocator strategy cache warms up the same way on
// every process that creates it fresh.
func hashSeed(docID string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(docID); i++ {
		h ^= uint64(docID[i])
		h *= 1099511628211
	}
	return int64(h)
}

// client is one websocket connection's send side, mirroring
// asadovsky-goatee's stream type: a buffered channel drained by a
// dedicated writer goroutine so a slow client never blocks the reader.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("collabtext: upgrade failed: %v", err)
		return
	}

	d := s.documentFor(docID)
	c := &client{conn: conn, send: make(chan []byte, 256)}

	d.mu.Lock()
	d.clients[c] = true
	d.mu.Unlock()

	go s.writePump(c)
	s.readPump(d, c, docID)
}

// applyAndFanOut merges payload's Message into d's canonical replica and
// relays the raw frame to every locally-connected client except skip (the
// websocket the frame originated on, if any — broker-originated frames
// pass skip as nil and reach every local client).
func (s *Server) applyAndFanOut(d *document, docID string, payload []byte, skip *client) {
	var msg crdt.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("collabtext: malformed message for doc %q: %v", docID, err)
		return
	}

	d.mu.Lock()
	err := d.replica.Process(msg)
	var peers []*client
	if err == nil {
		for c := range d.clients {
			if c != skip {
				peers = append(peers, c)
			}
		}
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("collabtext: apply error for doc %q: %v", docID, err)
		return
	}
	for _, c := range peers {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop rather than block the fan-out loop,
			// the same policy as the teacher's Hub.broadcast default.
		}
	}
}

func (s *Server) readPump(d *document, c *client, docID string) {
	defer func() {
		d.mu.Lock()
		delete(d.clients, c)
		d.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		s.applyAndFanOut(d, docID, payload, c)

		if s.store != nil {
			var msg crdt.Message
			if err := json.Unmarshal(payload, &msg); err == nil {
				if err := s.store.AppendMessage(docID, msg); err != nil {
					log.Printf("collabtext: store append failed for %q: %v", docID, err)
				}
			}
		}
		if s.broker != nil {
			if err := s.broker.Publish(docID, payload); err != nil {
				log.Printf("collabtext: broker publish failed for %q: %v", docID, err)
			}
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
