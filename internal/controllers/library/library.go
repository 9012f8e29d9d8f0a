package library

import (
	"github.com/gofiber/fiber/v3"
	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/services/library"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "library")

type Controller struct {
	service *library.Service
}

func NewController(app *fiber.App, service *library.Service) *Controller {
	lc := &Controller{service: service}
	group := app.Group("/library")
	group.Get("/list", lc.listRecordings)
	group.Get("/:meetingID", lc.getRecording)
	group.Delete("/:meetingID", lc.deleteRecording)
	return lc
}

// @Summary List finalized recordings
// @Tags library
// @Security BearerAuth
// @Produce json
// @Success 200 {array} library.Record "Recordings, newest first"
// @Router /library/list [get]
func (c *Controller) listRecordings(ctx fiber.Ctx) error {
	records, err := c.service.List()
	if err != nil {
		logger.Errorf("error listing recordings: %v", err)
		return fiber.ErrInternalServerError
	}
	return ctx.JSON(records)
}

// @Summary Get the recording record of a meeting
// @Tags library
// @Security BearerAuth
// @Produce json
// @Param meetingID path string true "Meeting ID"
// @Success 200 {object} library.Record "Recording record"
// @Failure 404 {string} string "Not found"
// @Router /library/{meetingID} [get]
func (c *Controller) getRecording(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	record, err := c.service.Get(meetingID)
	if err != nil {
		if errors.Is(err, library.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		logger.Errorf("error loading record for meeting %s: %v", meetingID, err)
		return fiber.ErrInternalServerError
	}
	return ctx.JSON(record)
}

// @Summary Delete the recording record of a meeting
// @Description Removes the record only; files on disk are left untouched.
// @Tags library
// @Security BearerAuth
// @Param meetingID path string true "Meeting ID"
// @Success 204 "Deleted"
// @Router /library/{meetingID} [delete]
func (c *Controller) deleteRecording(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if err := c.service.Delete(meetingID); err != nil {
		logger.Errorf("error deleting record for meeting %s: %v", meetingID, err)
		return fiber.ErrInternalServerError
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
