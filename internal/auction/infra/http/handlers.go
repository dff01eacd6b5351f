package http

import (
	"errors"
	"time"

	"pledgeboard/internal/auction/application"
	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/payments"
	"pledgeboard/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Handler mounts the REST boundary of the bidding engine. Identity and
// authorization live upstream; admin routes trust the X-Admin-ID header
// set by the platform gateway.
type Handler struct {
	service   application.AuctionService
	processor *payments.Processor
}

func NewHandler(service application.AuctionService, processor *payments.Processor) *Handler {
	return &Handler{service: service, processor: processor}
}

func (h *Handler) Register(app *fiber.App) {
	app.Post("/auctions", requireAdmin, h.createAuction)
	app.Post("/auctions/:id/activate", requireAdmin, h.activateAuction)
	app.Post("/auctions/:id/rounds", requireAdmin, h.createNextRound)
	app.Get("/auctions/:id/rounds", h.listRounds)
	app.Post("/auctions/:id/close", requireAdmin, h.closeAuction)
	app.Get("/auctions/:id/leaderboard", h.getLeaderboard)
	app.Get("/auctions/:id/winner-calculation", requireAdmin, h.winnerPreview)
	app.Get("/auctions/:id/participants", requireAdmin, h.listParticipants)
	app.Post("/auctions/:id/bids", h.submitPledge)
	app.Post("/rounds/:id/close", requireAdmin, h.closeRound)
	app.Post("/payments/confirm", h.paymentConfirm)
}

func requireAdmin(c *fiber.Ctx) error {
	if c.Get("X-Admin-ID") == "" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}
	return c.Next()
}

type createAuctionRequest struct {
	Title            string           `json:"title"`
	BasePrice        decimal.Decimal  `json:"base_price"`
	ParticipationFee decimal.Decimal  `json:"participation_fee"`
	MinPledge        *decimal.Decimal `json:"min_pledge"`
	MaxPledge        *decimal.Decimal `json:"max_pledge"`
}

func (h *Handler) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	auction, err := h.service.CreateAuction(c.Context(), application.CreateAuctionDTO{
		Title:            req.Title,
		BasePrice:        req.BasePrice,
		ParticipationFee: req.ParticipationFee,
		MinPledge:        req.MinPledge,
		MaxPledge:        req.MaxPledge,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(auction)
}

func (h *Handler) activateAuction(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	auction, err := h.service.ActivateAuction(c.Context(), auctionID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(auction)
}

type createRoundRequest struct {
	BasePrice        decimal.Decimal `json:"base_price"`
	MinPledge        decimal.Decimal `json:"min_pledge"`
	MaxPledge        decimal.Decimal `json:"max_pledge"`
	ParticipationFee decimal.Decimal `json:"participation_fee"`
	DurationDays     int             `json:"duration_days"`
}

func (h *Handler) createNextRound(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req createRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.DurationDays <= 0 {
		req.DurationDays = 7
	}
	round, err := h.service.CreateNextRound(c.Context(), auctionID, domain.RoundParams{
		BasePrice:        req.BasePrice,
		MinPledge:        req.MinPledge,
		MaxPledge:        req.MaxPledge,
		ParticipationFee: req.ParticipationFee,
		Duration:         time.Duration(req.DurationDays) * 24 * time.Hour,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(round)
}

func (h *Handler) listRounds(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	rounds, err := h.service.ListRounds(c.Context(), auctionID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(rounds)
}

func (h *Handler) closeRound(c *fiber.Ctx) error {
	roundID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid round id")
	}
	summary, err := h.service.CloseRound(c.Context(), roundID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(summary)
}

func (h *Handler) closeAuction(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	result, err := h.service.CloseAuction(c.Context(), auctionID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) getLeaderboard(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	viewerID := uuid.Nil
	if raw := c.Query("viewer_id"); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			viewerID = parsed
		}
	}
	lb, err := h.service.GetLeaderboard(c.Context(), auctionID, viewerID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(lb)
}

func (h *Handler) winnerPreview(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	result, err := h.service.WinnerPreview(c.Context(), auctionID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) listParticipants(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	participants, err := h.service.ListParticipants(c.Context(), auctionID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(participants)
}

type submitPledgeRequest struct {
	UserID  uuid.UUID       `json:"user_id"`
	RoundID uuid.UUID       `json:"round_id"`
	Amount  decimal.Decimal `json:"amount"`
}

func (h *Handler) submitPledge(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req submitPledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	result, err := h.service.SubmitPledge(c.Context(), application.SubmitPledgeDTO{
		UserID:    req.UserID,
		AuctionID: auctionID,
		RoundID:   req.RoundID,
		Amount:    req.Amount,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

type paymentConfirmRequest struct {
	EventID   string          `json:"event_id"`
	UserID    uuid.UUID       `json:"user_id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	RoundID   uuid.UUID       `json:"round_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// paymentConfirm ingests the trusted provider callback. Duplicates are
// acknowledged as success so the provider stops redelivering.
func (h *Handler) paymentConfirm(c *fiber.Ctx) error {
	var req paymentConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.EventID == "" {
		return badRequest(c, "event_id is required")
	}
	err := h.processor.Process(c.Context(), payments.ConfirmationEvent{
		EventID:   req.EventID,
		UserID:    req.UserID,
		AuctionID: req.AuctionID,
		RoundID:   req.RoundID,
		Amount:    req.Amount,
		Status:    domain.PaymentStatus(req.Status),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			return c.JSON(fiber.Map{"message": "already processed"})
		}
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"message": "confirmation applied"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// mapError translates the domain error taxonomy to HTTP statuses.
func mapError(c *fiber.Ctx, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrRoundNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotEligible):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrStaleConfirmation):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrRoundClosed),
		errors.Is(err, domain.ErrOutOfBounds),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrMissingPledgeBounds),
		errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrInvalidBounds),
		errors.Is(err, domain.ErrNoBids):
		status = fiber.StatusBadRequest
	default:
		log.Error("internal error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
