package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/service"
	"github.com/bkaraoglu/finishline/internal/work"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BatchPopulator is the populate port consumed by the HTTP surface.
type BatchPopulator interface {
	Populate(ctx context.Context, batchID string, units []work.Unit) error
}

// BatchStatusReader serves progress queries.
type BatchStatusReader interface {
	Status(ctx context.Context, batchID string) (*service.BatchStatus, error)
}

type BatchHandler struct {
	populator BatchPopulator
	status    BatchStatusReader
	logger    *zap.Logger
}

func NewBatchHandler(populator BatchPopulator, status BatchStatusReader, logger *zap.Logger) (*BatchHandler, error) {
	if populator == nil {
		return nil, fmt.Errorf("populator is required")
	}
	if status == nil {
		return nil, fmt.Errorf("status reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchHandler{
		populator: populator,
		status:    status,
		logger:    logger,
	}, nil
}

func RegisterBatchRoutes(router fiber.Router, populator BatchPopulator, status BatchStatusReader, logger *zap.Logger) error {
	h, err := NewBatchHandler(populator, status, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.PopulateBatch)
	v1.Get("/batches/:batchId", h.GetBatchStatus)

	return nil
}

type populateBatchRequest struct {
	BatchID   string      `json:"batchId"`
	WorkUnits []work.Unit `json:"workUnits"`
}

type populateBatchResponse struct {
	PopulateInitSucceeded bool `json:"populate_init_succeeded"`
}

// PopulateBatch kicks off a batch. The body of the response is the flat
// initiation ack the original protocol promised clients; completion itself
// arrives later over the notification channel.
func (h *BatchHandler) PopulateBatch(c *fiber.Ctx) error {
	var req populateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(populateBatchResponse{PopulateInitSucceeded: false})
	}

	if err := h.populator.Populate(c.Context(), req.BatchID, req.WorkUnits); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrValidation):
			status = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrConflict):
			status = fiber.StatusConflict
		}

		h.logger.Error("populate failed",
			zap.String("batchId", strings.TrimSpace(req.BatchID)),
			zap.Int("workUnits", len(req.WorkUnits)),
			zap.Error(err),
		)
		return c.Status(status).JSON(populateBatchResponse{PopulateInitSucceeded: false})
	}

	return c.Status(fiber.StatusAccepted).JSON(populateBatchResponse{PopulateInitSucceeded: true})
}

type batchStatusResponse struct {
	BatchID        string `json:"batchId"`
	AllTasksLoaded bool   `json:"allTasksLoaded"`
	Remaining      int64  `json:"remaining"`
}

func (h *BatchHandler) GetBatchStatus(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))

	status, err := h.status.Status(c.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "batch not found")
		case errors.Is(err, domain.ErrValidation):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(batchStatusResponse{
		BatchID:        status.BatchID,
		AllTasksLoaded: status.AllTasksLoaded,
		Remaining:      status.Remaining,
	})
}
