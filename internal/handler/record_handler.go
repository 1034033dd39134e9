package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"modelnormalizer/internal/errors"
	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/serializer"
	"modelnormalizer/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodySize      = 1 << 20
)

// RecordHandler handles record endpoints.
type RecordHandler struct {
	recordService service.RecordService
	decoder       serializer.JSONEncoder
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(recordService service.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

// GetRecord godoc
// @Summary Get a record
// @Description Returns the normalized record. Relations named in with are loaded and replace their foreign keys.
// @Tags records
// @Produce json
// @Param resource path string true "Resource name" Enums(accounts, cards, payments, payment_logs, transfers)
// @Param id path string true "Record ID"
// @Param with query string false "Comma separated relations to load, dotted for nesting (card.account)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /records/{resource}/{id} [get]
func (h *RecordHandler) GetRecord(c echo.Context) error {
	rep, err := h.recordService.Get(c.Request().Context(), c.Param("resource"), c.Param("id"), parseWith(c.QueryParam("with")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

// ListRecords godoc
// @Summary List records
// @Tags records
// @Produce json
// @Param resource path string true "Resource name"
// @Param limit query int false "Maximum number of records" default(50)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /records/{resource} [get]
func (h *RecordHandler) ListRecords(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_LIMIT",
			})
		}
		limit = min(parsed, maxListLimit)
	}

	items, err := h.recordService.List(c.Request().Context(), c.Param("resource"), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// CreateRecord godoc
// @Summary Create a record
// @Description Builds a record from its representation. Date fields are parsed, nested relation objects are rebuilt and their keys stored as foreign keys.
// @Tags records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Resource name"
// @Param request body map[string]interface{} true "Record representation"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /records/{resource} [post]
func (h *RecordHandler) CreateRecord(c echo.Context) error {
	data, err := h.decodeBody(c)
	if err != nil {
		return err
	}
	if _, ok := data.(*ordered.Map[any]); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "request body must be a JSON object",
			Code:  "INVALID_FORMAT",
		})
	}

	rep, err := h.recordService.Create(c.Request().Context(), c.Param("resource"), data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

// decodeBody reads the request body keeping object key order.
func (h *RecordHandler) decodeBody(c echo.Context) (any, error) {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	data, err := h.decoder.Decode(payload)
	if err != nil {
		return nil, httpError(err)
	}
	return data, nil
}

func parseWith(raw string) []string {
	if raw == "" {
		return nil
	}
	return lo.Uniq(lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
}

func httpError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}
