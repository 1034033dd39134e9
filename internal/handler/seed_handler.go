package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"modelnormalizer/internal/errors"
	"modelnormalizer/internal/seed"
	"modelnormalizer/internal/service"
)

// SeedHandler handles seed data endpoints.
type SeedHandler struct {
	recordService service.RecordService
	client        *http.Client
}

// NewSeedHandler creates a new seed handler. client fetches remote seed
// documents; nil uses http.DefaultClient.
func NewSeedHandler(recordService service.RecordService, client *http.Client) *SeedHandler {
	return &SeedHandler{recordService: recordService, client: client}
}

// SeedResponse represents the seed response.
type SeedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// SeedRecords godoc
// @Summary Import records
// @Description Imports a JSON array of representations from the request body, or from the URL in source. All records are stored or none.
// @Tags seed
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Resource name"
// @Param source query string false "URL of a JSON array to import instead of the body"
// @Success 201 {object} SeedResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /seed/{resource} [post]
func (h *SeedHandler) SeedRecords(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		items []any
		err   error
	)
	if source := c.QueryParam("source"); source != "" {
		items, err = seed.Fetch(ctx, h.client, source)
		if err != nil && !errors.IsInputError(err) {
			return echo.NewHTTPError(http.StatusBadGateway, errors.ErrorResponse{
				Error: "failed to fetch seed data",
				Code:  "SEED_SOURCE_FAILED",
			}).SetInternal(err)
		}
	} else {
		items, err = seed.Read(c.Request().Body)
	}
	if err != nil {
		return httpError(err)
	}

	count, err := h.recordService.Import(ctx, c.Param("resource"), items)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, SeedResponse{
		Message: "records seeded successfully",
		Count:   count,
	})
}
