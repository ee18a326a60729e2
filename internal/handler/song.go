package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/benam/api/internal/media"
	"github.com/benam/api/internal/middleware"
	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
	"github.com/benam/api/pkg/response"
)

type SongHandler struct {
	service   *service.SongService
	validator *validator.Validate
}

func NewSongHandler(svc *service.SongService, v *validator.Validate) *SongHandler {
	return &SongHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/songs
func (h *SongHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitSongRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return songError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/songs/:dateKey
func (h *SongHandler) Status(c *fiber.Ctx) error {
	dateKey := c.Params("dateKey")
	if !h.validDateKey(dateKey) {
		return response.ValidationError(c, "Date must be YYYY-MM-DD", nil)
	}

	result, err := h.service.Status(c.UserContext(), dateKey)
	if err != nil {
		return songError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles DELETE /api/songs/:dateKey
func (h *SongHandler) Cancel(c *fiber.Ctx) error {
	dateKey := c.Params("dateKey")
	if !h.validDateKey(dateKey) {
		return response.ValidationError(c, "Date must be YYYY-MM-DD", nil)
	}

	result, err := h.service.Cancel(c.UserContext(), middleware.GetUserID(c), dateKey)
	if err != nil {
		return songError(c, err)
	}

	return response.OK(c, result)
}

func (h *SongHandler) validDateKey(dateKey string) bool {
	return h.validator.Var(dateKey, "required,datetime=2006-01-02") == nil
}

func songError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return response.NotFound(c, "No submission for this date")
	case errors.Is(err, service.ErrInvalidVideoURL),
		errors.Is(err, service.ErrInvalidRecording),
		errors.Is(err, media.ErrInvalidWindow),
		errors.Is(err, media.ErrDurationExceedsCap):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrDateTaken),
		errors.Is(err, service.ErrDuplicateVideo),
		errors.Is(err, service.ErrAlreadyComplete):
		return response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return response.Forbidden(c, "You can only cancel your own submission")
	case errors.Is(err, service.ErrQueueUnavailable):
		return response.JobFailed(c, "Could not start processing, please try again")
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
