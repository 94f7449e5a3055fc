package stream

import (
	"time"

	"backend-groupride/internal/group"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const closeGrace = time.Second

// RegisterRoutes mounts the peer websocket at /ws/:peerID. When invites are
// enabled the connection needs ?invite=<token> issued to that peer.
func RegisterRoutes(r fiber.Router, hub *Hub, invites *group.Invites) {
	r.Get("/ws/:peerID", requireInvite(invites), websocket.New(func(c *websocket.Conn) {
		peer, err := hub.Register(group.PeerID(c.Params("peerID")))
		if err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			writeLoop(c, peer)
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			hub.Deliver(peer, msg)
		}
		hub.Unregister(peer)
		<-done
	}))
}

// writeLoop writes queued frames until the peer is kicked or unregistered.
// A kick ends with a close frame and an expired read deadline so the read
// loop returns and the peer is unregistered.
func writeLoop(c *websocket.Conn, peer *Peer) {
	for {
		select {
		case <-peer.Kicked():
			if peer.Flush() {
				flushQueued(c, peer)
			}
			hangUp(c)
			return
		case msg, ok := <-peer.Send:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				hangUp(c)
				return
			}
		}
	}
}

func flushQueued(c *websocket.Conn, peer *Peer) {
	for {
		select {
		case msg, ok := <-peer.Send:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func hangUp(c *websocket.Conn) {
	deadline := time.Now().Add(closeGrace)
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = c.SetReadDeadline(time.Now())
}

func requireInvite(invites *group.Invites) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if invites.Enabled() {
			if err := invites.Verify(c.Query("invite"), group.PeerID(c.Params("peerID"))); err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
		}
		return c.Next()
	}
}
