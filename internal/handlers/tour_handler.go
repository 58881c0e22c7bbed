package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tour-service/internal/models"
	"tour-service/internal/services"
)

type TourHandler struct {
	graph *services.GraphService
}

func NewTourHandler(graph *services.GraphService) *TourHandler {
	return &TourHandler{graph: graph}
}

// CreateTour creates a new tour
// @Summary Create a virtual tour
// @Description Create an empty tour owned by a property, project or block
// @Tags tours
// @Accept json
// @Produce json
// @Param tour body models.CreateTourRequest true "Tour data"
// @Success 201 {object} models.VirtualTour "Tour created"
// @Failure 400 {object} map[string]interface{} "Invalid request format"
// @Failure 409 {object} map[string]interface{} "Unknown owner"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /tours [post]
func (h *TourHandler) CreateTour(c *fiber.Ctx) error {
	var req models.CreateTourRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	tour, err := h.graph.CreateTour(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Failed to create tour")
	}
	return c.Status(fiber.StatusCreated).JSON(tour)
}

// ListTours lists tours, optionally filtered by owner
// @Summary List tours
// @Tags tours
// @Produce json
// @Param owner_kind query string false "Owner kind (property, project, block)"
// @Param owner_id query string false "Owner ID" Format(uuid)
// @Success 200 {array} models.VirtualTour
// @Failure 400 {object} map[string]interface{} "Invalid owner filter"
// @Router /tours [get]
func (h *TourHandler) ListTours(c *fiber.Ctx) error {
	var owner *models.OwnerRef
	kind, rawID := c.Query("owner_kind"), c.Query("owner_id")
	if kind != "" || rawID != "" {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return badRequest(c, "Invalid owner filter", err)
		}
		if !models.OwnerKind(kind).Valid() {
			return badRequest(c, "Invalid owner filter", errors.Errorf("unknown owner kind %q", kind))
		}
		owner = &models.OwnerRef{Kind: models.OwnerKind(kind), ID: id}
	}

	tours, err := h.graph.ListTours(c.UserContext(), owner)
	if err != nil {
		return respondError(c, err, "Failed to list tours")
	}
	return c.JSON(tours)
}

// GetTour returns a tour with its nodes and links
// @Summary Get a tour by ID
// @Tags tours
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Success 200 {object} models.VirtualTour
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Router /tours/{tourId} [get]
func (h *TourHandler) GetTour(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	ctx := c.UserContext()

	tour, err := h.graph.GetTour(ctx, ids[0])
	if err != nil {
		return respondError(c, err, "Tour not found")
	}
	if tour.Nodes, err = h.graph.ListNodes(ctx, tour.ID); err != nil {
		return respondError(c, err, "Failed to load tour nodes")
	}
	if tour.Links, err = h.graph.ListLinks(ctx, tour.ID); err != nil {
		return respondError(c, err, "Failed to load tour links")
	}
	return c.JSON(tour)
}

// RenameTour changes the name of a tour
// @Summary Rename a tour
// @Tags tours
// @Accept json
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param tour body models.RenameTourRequest true "New name"
// @Success 200 {object} models.VirtualTour
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /tours/{tourId} [put]
func (h *TourHandler) RenameTour(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var req models.RenameTourRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	tour, err := h.graph.RenameTour(c.UserContext(), ids[0], req)
	if err != nil {
		return respondError(c, err, "Failed to rename tour")
	}
	return c.JSON(tour)
}

// DeleteTour deletes a tour and everything in it
// @Summary Delete a tour
// @Description Deletes the tour with all nodes, links and annotations
// @Tags tours
// @Param tourId path string true "Tour ID" Format(uuid)
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Router /tours/{tourId} [delete]
func (h *TourHandler) DeleteTour(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	if err := h.graph.DeleteTour(c.UserContext(), ids[0]); err != nil {
		return respondError(c, err, "Failed to delete tour")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddNode appends a node to a tour
// @Summary Add a node
// @Tags nodes
// @Accept json
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param node body models.NodeAttributes true "Node attributes"
// @Success 201 {object} models.TourNode
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /tours/{tourId}/nodes [post]
func (h *TourHandler) AddNode(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var attrs models.NodeAttributes
	if err := c.BodyParser(&attrs); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	node, err := h.graph.AddNode(c.UserContext(), ids[0], attrs)
	if err != nil {
		return respondError(c, err, "Failed to add node")
	}
	return c.Status(fiber.StatusCreated).JSON(node)
}

// ListNodes returns the nodes of a tour in creation order
// @Summary List nodes
// @Tags nodes
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Success 200 {array} models.TourNode
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Router /tours/{tourId}/nodes [get]
func (h *TourHandler) ListNodes(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	nodes, err := h.graph.ListNodes(c.UserContext(), ids[0])
	if err != nil {
		return respondError(c, err, "Failed to list nodes")
	}
	return c.JSON(nodes)
}

// NearbyNodes finds geotagged nodes around a point
// @Summary Find nodes near a GPS position
// @Tags nodes
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query number false "Radius in meters"
// @Success 200 {array} models.TourNode
// @Failure 400 {object} map[string]interface{} "Invalid coordinates"
// @Router /tours/{tourId}/nodes/nearby [get]
func (h *TourHandler) NearbyNodes(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return badRequest(c, "Invalid latitude", err)
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return badRequest(c, "Invalid longitude", err)
	}
	var radius float64
	if raw := c.Query("radius"); raw != "" {
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			return badRequest(c, "Invalid radius", err)
		}
	}

	nodes, err := h.graph.NodesNear(c.UserContext(), ids[0], lat, lng, radius)
	if err != nil {
		return respondError(c, err, "Failed to find nearby nodes")
	}
	return c.JSON(nodes)
}

// @Summary Get a node
// @Tags nodes
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Success 200 {object} models.TourNode
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Router /tours/{tourId}/nodes/{nodeId} [get]
func (h *TourHandler) GetNode(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	node, err := h.graph.GetNode(c.UserContext(), ids[0], ids[1])
	if err != nil {
		return respondError(c, err, "Node not found")
	}
	return c.JSON(node)
}

// @Summary Update a node
// @Tags nodes
// @Accept json
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Param node body models.NodeAttributes true "Node attributes"
// @Success 200 {object} models.TourNode
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /tours/{tourId}/nodes/{nodeId} [put]
func (h *TourHandler) UpdateNode(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var attrs models.NodeAttributes
	if err := c.BodyParser(&attrs); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	node, err := h.graph.UpdateNode(c.UserContext(), ids[0], ids[1], attrs)
	if err != nil {
		return respondError(c, err, "Failed to update node")
	}
	return c.JSON(node)
}

// DeleteNode deletes a node with its links and annotations
// @Summary Delete a node
// @Tags nodes
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Router /tours/{tourId}/nodes/{nodeId} [delete]
func (h *TourHandler) DeleteNode(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	if err := h.graph.DeleteNode(c.UserContext(), ids[0], ids[1]); err != nil {
		return respondError(c, err, "Failed to delete node")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// @Summary Set the start node
// @Tags nodes
// @Accept json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param request body models.SetStartNodeRequest true "Start node"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Failure 409 {object} map[string]interface{} "Node is not part of the tour"
// @Router /tours/{tourId}/start-node [put]
func (h *TourHandler) SetStartNode(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var req models.SetStartNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}
	if err := models.Validator().Struct(req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	if err := h.graph.SetStartNode(c.UserContext(), ids[0], req.NodeID); err != nil {
		return respondError(c, err, "Failed to set start node")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateLink adds a directed link between two nodes of a tour
// @Summary Link two nodes
// @Tags links
// @Accept json
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param link body models.LinkNodesRequest true "Link"
// @Success 201 {object} models.TourLink
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Failure 409 {object} map[string]interface{} "Endpoint is not part of the tour"
// @Router /tours/{tourId}/links [post]
func (h *TourHandler) CreateLink(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	var req models.LinkNodesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format", err)
	}

	link, err := h.graph.LinkNodes(c.UserContext(), ids[0], req)
	if err != nil {
		return respondError(c, err, "Failed to link nodes")
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// @Summary Remove a link
// @Tags links
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param linkId path string true "Link ID" Format(uuid)
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Link not found"
// @Router /tours/{tourId}/links/{linkId} [delete]
func (h *TourHandler) DeleteLink(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "linkId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	if err := h.graph.UnlinkNodes(c.UserContext(), ids[0], ids[1]); err != nil {
		return respondError(c, err, "Failed to remove link")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
