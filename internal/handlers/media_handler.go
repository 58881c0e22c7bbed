package handlers

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tour-service/internal/models"
	"tour-service/internal/services"
)

type MediaHandler struct {
	media *services.MediaService
}

func NewMediaHandler(media *services.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// UploadPanorama attaches an image to a node
// @Summary Upload a node panorama or thumbnail
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param nodeId path string true "Node ID" Format(uuid)
// @Param file formData file true "Image file"
// @Param collection formData string false "panorama (default) or thumbnail"
// @Success 200 {object} models.TourNode
// @Failure 400 {object} map[string]interface{} "No file"
// @Failure 404 {object} map[string]interface{} "Node not found"
// @Failure 422 {object} map[string]interface{} "Unsupported file"
// @Failure 503 {object} map[string]interface{} "Media storage not configured"
// @Router /tours/{tourId}/nodes/{nodeId}/panorama [post]
func (h *MediaHandler) UploadPanorama(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId", "nodeId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded", err)
	}
	collection := c.FormValue("collection", models.CollectionPanorama)

	src, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Could not open uploaded file", err)
	}
	defer src.Close()

	log.Info().
		Str("tour_id", ids[0].String()).
		Str("node_id", ids[1].String()).
		Str("filename", fileHeader.Filename).
		Int64("size", fileHeader.Size).
		Msg("panorama upload")

	node, err := h.media.UploadPanorama(c.UserContext(), ids[0], ids[1], collection, fileHeader.Filename, src, fileHeader.Size)
	if err != nil {
		return respondError(c, err, "Failed to upload panorama")
	}
	return c.JSON(node)
}

// ImportArchive creates one node per panorama in an uploaded archive
// @Summary Import a panorama archive
// @Description Accepts ZIP, RAR, 7z or tar archives. Images become nodes in path order; other files are skipped.
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param tourId path string true "Tour ID" Format(uuid)
// @Param file formData file true "Archive"
// @Success 201 {object} services.ImportResult
// @Failure 400 {object} map[string]interface{} "No file"
// @Failure 404 {object} map[string]interface{} "Tour not found"
// @Failure 422 {object} map[string]interface{} "Unreadable archive"
// @Failure 503 {object} map[string]interface{} "Media storage not configured"
// @Router /tours/{tourId}/import [post]
func (h *MediaHandler) ImportArchive(c *fiber.Ctx) error {
	ids, err := pathIDs(c, "tourId")
	if err != nil {
		return badRequest(c, "Invalid UUID", err)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded", err)
	}

	tmpPath, err := saveTemp(fileHeader)
	if err != nil {
		return respondError(c, errors.Wrap(err, "could not store uploaded archive"), "Failed to import archive")
	}
	defer os.Remove(tmpPath)

	result, err := h.media.ImportArchive(c.UserContext(), ids[0], tmpPath)
	if err != nil {
		return respondError(c, err, "Failed to import archive")
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// saveTemp copies the uploaded file to a temporary file keeping its extension,
// which archive detection relies on.
func saveTemp(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "import-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
