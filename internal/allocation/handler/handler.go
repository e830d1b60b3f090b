package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/dto"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/engine"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/session"
	"github.com/hanifmhd/erp-allocation-service/internal/auth"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
)

type AllocationHandler struct {
	uc     allocation.UseCase
	logger logger.ZapLogger
}

func NewAllocationHandler(uc allocation.UseCase, log logger.ZapLogger) *AllocationHandler {
	return &AllocationHandler{uc: uc, logger: log}
}

func (h *AllocationHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/v1")

	sessions := v1.Group("/allocation/sessions")
	sessions.Post("/", h.OpenLine)
	sessions.Get("/:id", h.GetState)
	sessions.Post("/:id/save", h.Save)
	sessions.Delete("/:id/lots", h.ClearAll)
	sessions.Put("/:id/lots/:lotId", h.SetQuantity)
	sessions.Post("/:id/lots/:lotId/autofill", h.AutoFill)
	sessions.Post("/:id/lots/:lotId/confirm", h.Confirm)
	sessions.Delete("/:id/lots/:lotId", h.Clear)

	v1.Get("/allocations/search", h.SearchHistory)
}

type openLineRequest struct {
	OrderLineID string `json:"order_line_id"`
}

func (h *AllocationHandler) OpenLine(c *fiber.Ctx) error {
	var req openLineRequest
	if err := c.BodyParser(&req); err != nil || req.OrderLineID == "" {
		return respondError(c, fiber.StatusBadRequest, "invalid_request", "order_line_id is required")
	}

	state, err := h.uc.OpenLine(c.Context(), &dto.OpenLineInput{
		OrderLineID: req.OrderLineID,
		MerchantID:  auth.GetMerchantID(c),
		UserID:      auth.GetUserID(c),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *AllocationHandler) GetState(c *fiber.Ctx) error {
	state, err := h.uc.GetState(c.Context(), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(state)
}

type setQuantityRequest struct {
	// Quantity arrives as the raw text the user typed; validation and
	// clamping happen server-side so every client shares one rule set.
	Quantity string `json:"quantity"`
}

func (h *AllocationHandler) SetQuantity(c *fiber.Ctx) error {
	var req setQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid_request", "malformed body")
	}

	result, err := h.uc.SetQuantity(c.Context(), &dto.SetQuantityInput{
		SessionID:   c.Params("id"),
		LotID:       c.Params("lotId"),
		RawQuantity: req.Quantity,
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(result)
}

func (h *AllocationHandler) AutoFill(c *fiber.Ctx) error {
	result, err := h.uc.AutoFill(c.Context(), &dto.LotActionInput{
		SessionID: c.Params("id"),
		LotID:     c.Params("lotId"),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(result)
}

func (h *AllocationHandler) Confirm(c *fiber.Ctx) error {
	state, err := h.uc.Confirm(c.Context(), &dto.LotActionInput{
		SessionID: c.Params("id"),
		LotID:     c.Params("lotId"),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(state)
}

func (h *AllocationHandler) Clear(c *fiber.Ctx) error {
	state, err := h.uc.Clear(c.Context(), &dto.LotActionInput{
		SessionID: c.Params("id"),
		LotID:     c.Params("lotId"),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(state)
}

func (h *AllocationHandler) ClearAll(c *fiber.Ctx) error {
	state, err := h.uc.ClearAll(c.Context(), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(state)
}

func (h *AllocationHandler) Save(c *fiber.Ctx) error {
	state, err := h.uc.Save(c.Context(), &dto.SaveInput{
		SessionID: c.Params("id"),
		UserID:    auth.GetUserID(c),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(state)
}

func (h *AllocationHandler) SearchHistory(c *fiber.Ctx) error {
	records, total, err := h.uc.SearchHistory(c.Context(), &dto.HistoryFilters{
		MerchantID:  auth.GetMerchantID(c),
		OrderLineID: c.Query("order_line_id"),
		LotNumber:   c.Query("lot_number"),
		Page:        c.QueryInt("page", 1),
		PageSize:    c.QueryInt("page_size", 20),
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": records,
		"total": total,
	})
}

func (h *AllocationHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, allocation.ErrSessionNotFound),
		errors.Is(err, allocation.ErrOrderLineNotFound),
		errors.Is(err, session.ErrUnknownLot):
		return respondError(c, fiber.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, engine.ErrNotNumeric):
		return respondError(c, fiber.StatusUnprocessableEntity, "not_numeric", err.Error())

	case errors.Is(err, engine.ErrLotLocked):
		return respondError(c, fiber.StatusUnprocessableEntity, "lot_locked", err.Error())

	case errors.Is(err, session.ErrNothingToConfirm),
		errors.Is(err, session.ErrNothingAllocated):
		return respondError(c, fiber.StatusUnprocessableEntity, "nothing_allocated", err.Error())

	case errors.Is(err, allocation.ErrZeroRequirement):
		return respondError(c, fiber.StatusConflict, "zero_requirement", err.Error())

	case errors.Is(err, session.ErrOverAllocated):
		return respondError(c, fiber.StatusConflict, "over_allocated", err.Error())

	case errors.Is(err, session.ErrSaveInFlight),
		errors.Is(err, allocation.ErrSaveBusy):
		return respondError(c, fiber.StatusConflict, "save_in_flight", err.Error())

	case errors.Is(err, allocation.ErrStockConflict):
		// Stale freeQty: the client should re-open the line to pick up
		// fresh candidates.
		return respondError(c, fiber.StatusConflict, "stock_conflict", err.Error())

	default:
		h.logger.Error("allocation request failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": message,
	})
}
