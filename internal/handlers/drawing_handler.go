package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"tour-service/internal/models"
	"tour-service/internal/services"
)

// DrawingHandler serves the annotation editor's load and save calls.
type DrawingHandler struct {
	graph  *services.GraphService
	engine *services.DrawingSyncEngine
}

func NewDrawingHandler(graph *services.GraphService, engine *services.DrawingSyncEngine) *DrawingHandler {
	return &DrawingHandler{graph: graph, engine: engine}
}

// SaveDrawingsRequest is the body of a save. It is the node's complete
// drawing set: both lists are required and an empty list clears that kind.
type SaveDrawingsRequest struct {
	Polygons *[]models.Polygon `json:"polygons"`
	Texts    *[]models.Text    `json:"texts"`
}

// LoadDrawings returns the node's polygons and texts
// @Summary Load node drawings
// @Tags drawings
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Success 200 {object} models.DrawingSet
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Router /tours/{tourId}/nodes/{nodeId}/drawings [get]
func (h *DrawingHandler) LoadDrawings(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	ctx := c.UserContext()

	if _, err := h.graph.GetNode(ctx, ids[0], ids[1]); err != nil {
		return respondError(c, err, "Node not found")
	}
	set, err := h.engine.Load(ctx, ids[1])
	if err != nil {
		return respondError(c, err, "Failed to load drawings")
	}
	return c.JSON(set)
}

// SaveDrawings reconciles the submitted drawings with the stored ones
// @Summary Save node drawings
// @Description The body is the node's complete drawing set. Items are matched by clientId: unknown ids are inserted, changed items updated and missing items deleted. Nothing is written when any item is invalid.
// @Tags drawings
// @Accept json
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Param drawings body SaveDrawingsRequest true "Full drawing set"
// @Success 200 {object} models.AppliedSet
// @Failure 400 {object} map[string]interface{} "Invalid request format"
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /tours/{tourId}/nodes/{nodeId}/drawings [put]
func (h *DrawingHandler) SaveDrawings(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var req SaveDrawingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}
	if req.Polygons == nil || req.Texts == nil {
		return badRequest(c, "Invalid request format", errors.New("body must carry both polygons and texts"))
	}
	ctx := c.UserContext()

	if _, err := h.graph.GetNode(ctx, ids[0], ids[1]); err != nil {
		return respondError(c, err, "Node not found")
	}

	applied, err := h.engine.ReconcileNodeAnnotations(ctx, ids[1], *req.Polygons, *req.Texts)
	if err != nil {
		return respondSaveError(c, err)
	}
	return c.JSON(applied)
}

// respondSaveError adds success=false to client errors so the editor can
// keep its local state.
func respondSaveError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		return respondError(c, err, "Failed to save drawings")
	}
	body := fiber.Map{
		"success": false,
		"error":   true,
		"message": "Failed to save drawings",
		"details": err.Error(),
	}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["validation"] = verr
	}
	return c.Status(status).JSON(body)
}
