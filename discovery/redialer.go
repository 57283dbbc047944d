package discovery

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

// Dialer opens a peer-mesh websocket connection to a discovered Peer.
// cmd/agent supplies the concrete dial function (DialWebsocket); kept as
// a func type here so this package stays independent of the
// websocket client's document-merge logic.
type Dialer func(ctx context.Context, p Peer) (*websocket.Conn, error)

// DialWebsocket is the default Dialer, connecting to ws://addr:port/ws/docID
// on a discovered peer, mirroring the teacher's own client-side dial target.
func DialWebsocket(docID string) Dialer {
	return func(ctx context.Context, p Peer) (*websocket.Conn, error) {
		u := url.URL{Scheme: "ws", Host: dialAddr(p), Path: "/ws/" + docID}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("discovery: dial %s: %w", p.Instance, err)
		}
		return conn, nil
	}
}

// Redial keeps p connected for as long as ctx is alive: it dials, hands
// the live connection to onConnect, and once onConnect returns (the
// connection dropped) retries with an exponential backoff instead of
// hot-looping, stopping only when ctx is cancelled. Grounded on the
// backoff.Retry pattern from github.com/cenkalti/backoff, a dependency
// the teacher's agent/go.mod carries but never calls.
func Redial(ctx context.Context, p Peer, dial Dialer, onConnect func(*websocket.Conn)) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry indefinitely until ctx is cancelled

	operation := func() error {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := dial(ctx, p)
		if err != nil {
			return err
		}
		onConnect(conn)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("discovery: connection to %s dropped", p.Instance)
	}

	notify := func(err error, wait time.Duration) {
		log.Printf("discovery: redial %s failed, retrying in %s: %v", p.Instance, wait, err)
	}

	_ = backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}
