package playback

import (
	"net/url"
	"path/filepath"

	"github.com/gofiber/fiber/v3"
	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/services/library"
	"github.com/sandersonthethird/meetrec/internal/services/playback"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "playback")

type Controller struct {
	cfg     *config.Config
	service *playback.Service
	lib     *library.Service
}

func NewController(
	app *fiber.App,
	cfg *config.Config,
	service *playback.Service,
	lib *library.Service,
) *Controller {
	pc := &Controller{cfg: cfg, service: service, lib: lib}
	group := app.Group("/playback")
	group.Get("/download/:filename", pc.downloadFile)
	group.Get("/:meetingID", pc.resolvePlayable)
	return pc
}

// @Summary Resolve a playable file for a meeting
// @Description Look up the stored filename, resolve it against the disk and convert to a compatible container when needed.
// @Tags playback
// @Security BearerAuth
// @Produce json
// @Param meetingID path string true "Meeting ID"
// @Success 200 {object} map[string]interface{} "Playable filename"
// @Failure 404 {string} string "No recording found"
// @Router /playback/{meetingID} [get]
func (c *Controller) resolvePlayable(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if meetingID == "" {
		return fiber.ErrBadRequest
	}

	stored := ""
	record, err := c.lib.Get(meetingID)
	if err != nil && !errors.Is(err, library.ErrRecordNotFound) {
		logger.Errorf("error loading record for meeting %s: %v", meetingID, err)
		return fiber.ErrInternalServerError
	}
	if record != nil {
		stored = record.Filename
	}

	filename, found := c.service.ResolveFilename(meetingID, stored)
	if !found {
		return fiber.ErrNotFound
	}

	playable := c.service.EnsurePlayable(ctx.Context(), filename)
	return ctx.JSON(fiber.Map{
		"meeting_id": meetingID,
		"filename":   playable,
	})
}

// @Summary Download a recording file
// @Tags playback
// @Security BearerAuth
// @Produce octet-stream
// @Param filename path string true "Filename"
// @Success 200 {file} binary "File stream"
// @Failure 400 {string} string "Bad filename"
// @Router /playback/download/{filename} [get]
func (c *Controller) downloadFile(ctx fiber.Ctx) error {
	raw := ctx.Params("filename")
	filename, err := url.PathUnescape(raw)
	if err != nil || filename == "" || filename != filepath.Base(filename) {
		return fiber.ErrBadRequest
	}
	fullPath := filepath.Join(c.cfg.RecordingsDir, filename)
	ctx.Attachment(filename)
	return ctx.SendFile(fullPath, fiber.SendFile{
		ByteRange: true,
	})
}
