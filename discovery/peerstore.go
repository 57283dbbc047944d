package discovery

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var peersBucket = []byte("peers")

// PeerStore durably remembers every peer this agent has ever discovered,
// keyed by instance name, so a restarted agent can attempt to reconnect
// to peers it knew about even before mDNS rediscovers them. Grounded on
// named-data-YaNFD's std/pkg/object/store_bolt.go single-bucket bbolt
// wrapper; the teacher's agent/go.mod carries bbolt as a dependency but
// never opens a database, leaving the peer list unpersisted.
type PeerStore struct {
	db *bolt.DB
}

// OpenPeerStore opens (creating if necessary) a bbolt database at path.
func OpenPeerStore(path string) (*PeerStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: open peer store %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(peersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("discovery: create peers bucket: %w", err)
	}
	return &PeerStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *PeerStore) Close() error {
	return s.db.Close()
}

// Remember upserts p, keyed by its instance name.
func (s *PeerStore) Remember(p Peer) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("discovery: marshal peer %q: %w", p.Instance, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucket).Put([]byte(p.Instance), value)
	})
}

// Forget removes a peer by instance name, e.g. once it has been
// unreachable long enough that it is no longer worth redialing.
func (s *PeerStore) Forget(instance string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucket).Delete([]byte(instance))
	})
}

// All returns every remembered peer.
func (s *PeerStore) All() ([]Peer, error) {
	var peers []Peer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucket).ForEach(func(_, value []byte) error {
			var p Peer
			if err := json.Unmarshal(value, &p); err != nil {
				return err
			}
			peers = append(peers, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: list peers: %w", err)
	}
	return peers, nil
}
