package websocket

import (
	"context"
	"encoding/json"

	"pledgeboard/internal/auction/application"
	"pledgeboard/internal/shared/logger"
	sharedws "pledgeboard/internal/shared/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionWSHandler serves the subscribe stream: it upgrades connections,
// feeds new subscribers a snapshot via the hub, and answers inbound
// auction-scoped messages.
type AuctionWSHandler struct {
	service application.AuctionService
	hub     *sharedws.Hub
}

func NewAuctionWSHandler(service application.AuctionService, hub *sharedws.Hub) *AuctionWSHandler {
	h := &AuctionWSHandler{
		service: service,
		hub:     hub,
	}
	hub.SetSnapshotProvider(h.leaderboardSnapshot)
	return h
}

// Register mounts the subscribe endpoint on the app.
func (h *AuctionWSHandler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/auctions/:id", websocket.New(func(conn *websocket.Conn) {
		auctionID := conn.Params("id")
		if _, err := uuid.Parse(auctionID); err != nil {
			_ = conn.Close()
			return
		}
		// Identity is established upstream; an empty viewer means an
		// anonymous observer.
		viewerID := conn.Query("viewer_id")

		client := sharedws.NewClient(h.hub, conn, uuid.NewString(), auctionID, viewerID)
		h.hub.RegisterClient(client)

		ctx := context.Background()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}))
}

// ListenForMessages consumes the hub's inbound channel and dispatches
// each client message. Runs as a goroutine for the process lifetime.
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped listening for inbound messages from hub")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

func (h *AuctionWSHandler) processMessage(ctx context.Context, client *sharedws.Client, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.sendErrorToClient(client, "invalid message format")
		return
	}
	switch envelope.Type {
	case MessageTypeRequestLeaderboard:
		h.handleRequestLeaderboard(ctx, client)
	default:
		h.sendErrorToClient(client, "unknown message type")
	}
}

// handleRequestLeaderboard answers a client-initiated refresh with that
// viewer's own ranked view (private below-top-K standing included).
func (h *AuctionWSHandler) handleRequestLeaderboard(ctx context.Context, client *sharedws.Client) {
	auctionID, err := uuid.Parse(client.AuctionID)
	if err != nil {
		h.sendErrorToClient(client, "invalid auction id")
		return
	}
	viewerID := uuid.Nil
	if client.ViewerID != "" {
		if parsed, err := uuid.Parse(client.ViewerID); err == nil {
			viewerID = parsed
		}
	}

	lb, err := h.service.GetLeaderboard(ctx, auctionID, viewerID)
	if err != nil {
		h.sendErrorToClient(client, "failed to get leaderboard")
		return
	}
	data, err := encodeEnvelope(MessageTypeLeaderboardUpdate, lb)
	if err != nil {
		log.Error("failed to marshal leaderboard", zap.Error(err))
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Warn("client send channel full, dropping leaderboard refresh",
			zap.String("clientID", client.ID))
	}
}

// leaderboardSnapshot is the hub's snapshot provider: the anonymous view
// of the current board, pushed to every new subscriber on register.
func (h *AuctionWSHandler) leaderboardSnapshot(auctionID string) ([]byte, error) {
	id, err := uuid.Parse(auctionID)
	if err != nil {
		return nil, err
	}
	lb, err := h.service.GetLeaderboard(context.Background(), id, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(MessageTypeLeaderboardUpdate, lb)
}

func (h *AuctionWSHandler) sendErrorToClient(client *sharedws.Client, errorMessage string) {
	data, err := encodeEnvelope(MessageTypeServerError, ErrorPayload{Error: errorMessage})
	if err != nil {
		log.Error("failed to marshal error message", zap.Error(err))
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Warn("client send channel full or closed, could not send error msg")
	}
}
