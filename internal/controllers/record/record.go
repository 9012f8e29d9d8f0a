package record

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"github.com/sandersonthethird/meetrec/internal/services/recorder"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "record")

type Controller struct {
	service *recorder.Service
}

func NewController(app *fiber.App, service *recorder.Service) *Controller {
	rc := &Controller{service: service}
	record := app.Group("/record")
	record.Post("/:meetingID/start", rc.startRecording)
	record.Post("/:meetingID/chunks", rc.appendChunk)
	record.Post("/:meetingID/stop", rc.stopRecording)
	record.Delete("/:meetingID", rc.discardRecording)
	record.Get("/status", rc.getStatus)
	return rc
}

// @Summary Start a recording session
// @Description Begin a capture-to-file session for a meeting. Any prior active session is discarded first.
// @Tags record
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param meetingID path string true "Meeting ID"
// @Success 200 "Recording started"
// @Failure 503 {string} string "Encoder unavailable"
// @Failure 507 {string} string "Insufficient disk space"
// @Router /record/{meetingID}/start [post]
func (r *Controller) startRecording(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if meetingID == "" {
		return fiber.ErrBadRequest
	}
	if err := r.service.Start(meetingID); err != nil {
		logger.Errorf("error starting recording for meeting %s: %v", meetingID, err)
		switch {
		case errors.Is(err, encoder.ErrEncoderUnavailable):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		case errors.Is(err, recorder.ErrDiskFull):
			return fiber.NewError(fiber.StatusInsufficientStorage, err.Error())
		default:
			return fiber.ErrInternalServerError
		}
	}
	return ctx.SendStatus(fiber.StatusOK)
}

// @Summary Append a captured chunk
// @Description Feed binary capture data into the active session. Chunks for a non-active session are dropped.
// @Tags record
// @Security BearerAuth
// @Accept octet-stream
// @Param meetingID path string true "Meeting ID"
// @Param chunk body []byte true "Binary chunk"
// @Success 202 "Chunk accepted"
// @Router /record/{meetingID}/chunks [post]
func (r *Controller) appendChunk(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if meetingID == "" {
		return fiber.ErrBadRequest
	}
	r.service.Append(meetingID, ctx.Body())
	return ctx.SendStatus(fiber.StatusAccepted)
}

// @Summary Stop and finalize a recording
// @Description Drain pending writes, validate the encoder output and publish the final file.
// @Tags record
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param meetingID path string true "Meeting ID"
// @Param body body StopRequest true "Final filename"
// @Success 200 {object} StopResult "Finalized recording"
// @Failure 400 {string} string "Empty recording or bad filename"
// @Failure 404 {string} string "No active session"
// @Failure 504 {string} string "Encoder did not finish in time"
// @Router /record/{meetingID}/stop [post]
func (r *Controller) stopRecording(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if meetingID == "" {
		return fiber.ErrBadRequest
	}

	var req StopRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if !validFinalName(req.Filename) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid final filename")
	}

	filename, err := r.service.Finalize(meetingID, req.Filename)
	if err != nil {
		logger.Errorf("error finalizing recording for meeting %s: %v", meetingID, err)
		var exitErr *recorder.ExitError
		switch {
		case errors.Is(err, recorder.ErrNoActiveSession):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, recorder.ErrEmptyRecording):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, recorder.ErrFinalizeTimeout):
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		case errors.As(err, &exitErr):
			return fiber.NewError(fiber.StatusInternalServerError, exitErr.Error())
		default:
			return fiber.ErrInternalServerError
		}
	}
	return ctx.JSON(StopResult{MeetingID: meetingID, Filename: filename})
}

// @Summary Discard a recording session
// @Description Tear down the session without validation; the temp file is deleted.
// @Tags record
// @Security BearerAuth
// @Produce json
// @Param meetingID path string true "Meeting ID"
// @Success 200 {object} DiscardResult "Discard outcome"
// @Router /record/{meetingID} [delete]
func (r *Controller) discardRecording(ctx fiber.Ctx) error {
	meetingID := ctx.Params("meetingID")
	if meetingID == "" {
		return fiber.ErrBadRequest
	}
	discarded := r.service.Discard(meetingID)
	return ctx.JSON(DiscardResult{MeetingID: meetingID, Discarded: discarded})
}

// @Summary Get active recording status
// @Tags record
// @Security BearerAuth
// @Produce json
// @Success 200 {object} recorder.Stats "Active session stats"
// @Failure 404 {string} string "No active session"
// @Router /record/status [get]
func (r *Controller) getStatus(ctx fiber.Ctx) error {
	stats, ok := r.service.ActiveStats()
	if !ok {
		return fiber.ErrNotFound
	}
	return ctx.JSON(stats)
}

// final filenames come from the caller; confine them to the recordings
// directory and keep the temp pattern reserved
func validFinalName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		!strings.HasSuffix(name, recorder.TempSuffix)
}
