package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"tour-service/internal/services"
)

// ExportHandler serves viewer documents and export cache administration.
type ExportHandler struct {
	export *services.ExportService
	cache  *services.ExportCache
}

// NewExportHandler creates the handler. cache may be nil.
func NewExportHandler(export *services.ExportService, cache *services.ExportCache) *ExportHandler {
	return &ExportHandler{export: export, cache: cache}
}

// ExportTour returns the viewer document of a tour
// @Summary Export a tour for the panorama viewer
// @Description Dangling links and markers are dropped; their count is returned in the X-Export-Warnings header. Pass warnings=true to get them in the body.
// @Tags export
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param warnings query bool false "Include dropped references in the body"
// @Success 200 {object} models.TourDocument
// @Header 200 {integer} X-Export-Warnings "Number of dropped references"
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Router /tours/{tourId}/export [get]
func (h *ExportHandler) ExportTour(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}

	result, err := h.export.AssembleTour(c.UserContext(), ids[0])
	if err != nil {
		return respondError(c, err, "Failed to export tour")
	}

	c.Set("X-Export-Warnings", strconv.Itoa(len(result.Warnings)))
	if c.QueryBool("warnings") {
		return c.JSON(result)
	}
	return c.JSON(result.Document)
}

// GetCacheStats returns export cache statistics
// @Summary Export cache statistics
// @Tags cache
// @Produce json
// @Success 200 {object} services.ExportCacheStats
// @Router /tours/cache/stats [get]
func (h *ExportHandler) GetCacheStats(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(services.ExportCacheStats{})
	}
	return c.JSON(h.cache.GetStatistics())
}

// ClearCache drops every cached export document
// @Summary Clear the export cache
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{} "Cache cleared"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /tours/cache/clear [post]
func (h *ExportHandler) ClearCache(c *fiber.Ctx) error {
	if h.cache != nil {
		if err := h.cache.ClearAll(c.UserContext()); err != nil {
			log.Error().Err(err).Msg("error clearing export cache")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   true,
				"message": "Failed to clear cache",
			})
		}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
