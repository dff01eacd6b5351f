package websocket

import (
	"context"
	"time"

	"pledgeboard/internal/shared/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-client outbound buffer; a client that falls this far behind
	// is dropped rather than allowed to block the fan-out.
	sendBufferSize = 32
)

// SnapshotProvider returns the serialized current state for an auction,
// pushed to every observer the moment they subscribe.
type SnapshotProvider func(auctionID string) ([]byte, error)

// Hub keeps the observer registry, grouped by auction ID, and fans
// broadcasts out to each group.
type Hub struct {
	// Registered clients, grouped by auction ID.
	clients map[string]map[*Client]bool
	// Outbound broadcasts to an auction's group.
	broadcast chan *Message
	// Register requests from the clients, snapshot already fetched.
	register chan *registration
	// Unregister requests from clients.
	unregister chan *Client
	// InboundMessages is consumed by module-specific handlers.
	InboundMessages chan *ClientMessage

	snapshot SnapshotProvider
}

// registration carries a new client together with its prefetched
// snapshot, so the event loop never waits on a store read.
type registration struct {
	client   *Client
	snapshot []byte
}

// Client represents an individual ws connection subscribed to one auction.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// The auction this client observes.
	AuctionID string
	// Unique identifier for the client.
	ID string
	// ViewerID is the authenticated user behind the connection, empty
	// for anonymous observers.
	ViewerID string
}

type Message struct {
	AuctionID string
	Data      []byte
}

// ClientMessage wraps a client and the raw data it sent, forwarded to
// the module handlers listening on InboundMessages.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:       make(chan *Message, 64),
		register:        make(chan *registration, 64),
		unregister:      make(chan *Client, 64),
		clients:         make(map[string]map[*Client]bool),
		InboundMessages: make(chan *ClientMessage, 64),
	}
}

// SetSnapshotProvider installs the snapshot source. Must be called
// before Run.
func (h *Hub) SetSnapshotProvider(p SnapshotProvider) {
	h.snapshot = p
}

// Run starts the hub listening on its channels.
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket Hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket Hub shutting down due to context cancellation")
			return
		case reg := <-h.register:
			client := reg.client
			if _, ok := h.clients[client.AuctionID]; !ok {
				h.clients[client.AuctionID] = make(map[*Client]bool)
			}
			h.clients[client.AuctionID][client] = true
			log.Info("Client registered",
				zap.String("clientID", client.ID),
				zap.String("auctionID", client.AuctionID),
				zap.Int("group_size", len(h.clients[client.AuctionID])),
			)
			if reg.snapshot != nil {
				select {
				case client.Send <- reg.snapshot:
				default:
					log.Warn("Client send buffer full on snapshot push",
						zap.String("clientID", client.ID),
						zap.String("auctionID", client.AuctionID),
					)
				}
			}

		case client := <-h.unregister:
			if clients, ok := h.clients[client.AuctionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					log.Info("Client unregistered",
						zap.String("clientID", client.ID),
						zap.String("auctionID", client.AuctionID),
					)
					if len(clients) == 0 {
						delete(h.clients, client.AuctionID)
					}
				}
			}

		case message := <-h.broadcast:
			if clients, ok := h.clients[message.AuctionID]; ok {
				log.Debug("Broadcasting message to auction",
					zap.String("auctionID", message.AuctionID),
					zap.Int("clients", len(clients)))
				for client := range clients {
					select {
					case client.Send <- message.Data:
					default:
						// Client cannot keep up; dropping it must not
						// stall delivery to the rest of the group.
						close(client.Send)
						delete(clients, client)
						log.Warn("Failed to send message to client, unregistering",
							zap.String("clientID", client.ID),
							zap.String("auctionID", client.AuctionID),
						)
					}
				}
			}
		}
	}
}

// RegisterClient fetches the auction snapshot off the event loop and
// hands the client to the hub; the registered client receives the
// snapshot as its first message, before any subsequent broadcast.
func (h *Hub) RegisterClient(client *Client) {
	go func() {
		var snap []byte
		if h.snapshot != nil {
			data, err := h.snapshot(client.AuctionID)
			if err != nil {
				log.Warn("Snapshot fetch failed for new client",
					zap.String("clientID", client.ID),
					zap.String("auctionID", client.AuctionID),
					zap.Error(err),
				)
			} else {
				snap = data
			}
		}
		select {
		case h.register <- &registration{client: client, snapshot: snap}:
		default:
			log.Error("Register channel is full, client registration failed",
				zap.String("clientID", client.ID),
				zap.String("auctionID", client.AuctionID),
			)
			if client.Conn != nil {
				_ = client.Conn.Close()
			}
		}
	}()
}

// UnregisterClient removes a client from the hub.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	default:
		log.Error("Unregister channel is full, client unregistration failed",
			zap.String("clientID", client.ID),
			zap.String("auctionID", client.AuctionID),
		)
	}
}

// BroadcastToAuction queues a message for every client subscribed to an
// auction. Non-blocking: a full queue drops the message rather than
// stalling the caller.
func (h *Hub) BroadcastToAuction(auctionID string, data []byte) {
	select {
	case h.broadcast <- &Message{AuctionID: auctionID, Data: data}:
	default:
		log.Error("Broadcast channel is full, message dropped", zap.String("auctionID", auctionID))
	}
}

// NewClient builds a hub client around an accepted ws connection.
func NewClient(hub *Hub, conn *websocket.Conn, id, auctionID, viewerID string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		ID:        id,
		AuctionID: auctionID,
		ViewerID:  viewerID,
	}
}

// ReadPump reads messages from the client connection and forwards them
// to the Hub's inbound channel. Runs as one goroutine per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("auctionID", c.AuctionID),
					zap.Error(err),
				)
			}
			break
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Hub InboundMessages channel is full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("auctionID", c.AuctionID),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// One goroutine per connection; it is the single writer to Conn.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message to client",
					zap.String("clientID", c.ID),
					zap.String("auctionID", c.AuctionID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
