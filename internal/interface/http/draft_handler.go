package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

var payloadValidator = validator.New()

type variantPayload struct {
	Energy   string `json:"energy" validate:"required,oneof=solar wind"`
	Workflow string `json:"workflow" validate:"required,oneof=assessment forecast"`
	Mode     string `json:"mode" validate:"omitempty,oneof=standard train"`
}

func (p variantPayload) toVariant() assessment.Variant {
	return assessment.Variant{
		Energy: assessment.EnergyType(p.Energy),
		Flow:   assessment.Workflow(p.Workflow),
		Mode:   assessment.ForecastMode(p.Mode),
	}
}

// CreateDraft opens a new form draft for the requested variant.
func (h *Handler) CreateDraft(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	var payload variantPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := payloadValidator.Struct(payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	draft, err := h.assessSvc.CreateDraft(c.Request.Context(), claims.UserID, payload.toVariant())
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// GetDraft returns the draft and its current validity report.
func (h *Handler) GetDraft(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	draft, report, err := h.assessSvc.GetDraft(c.Request.Context(), claims.UserID, id)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft, "validity": report})
}

// DeleteDraft discards the draft, its uploaded files, and cached tokens.
func (h *Handler) DeleteDraft(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	if err := h.assessSvc.DeleteDraft(c.Request.Context(), claims.UserID, id); err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PatchFields applies a partial field update and returns the fresh report.
func (h *Handler) PatchFields(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	var patch assessment.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	report, err := h.assessSvc.UpdateFields(c.Request.Context(), claims.UserID, id, patch)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"validity": report})
}

// SwitchVariant resets the draft onto a different energy/workflow pairing.
func (h *Handler) SwitchVariant(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	var payload variantPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := payloadValidator.Struct(payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	draft, err := h.assessSvc.SwitchVariant(c.Request.Context(), claims.UserID, id, payload.toVariant())
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// ResetDraft clears all fields and slots on the current variant.
func (h *Handler) ResetDraft(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	draft, err := h.assessSvc.ResetDraft(c.Request.Context(), claims.UserID, id)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// UploadSlotFile stores a file into one of the draft's file slots.
func (h *Handler) UploadSlotFile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	slot, err := parseSlot(c.Param("slot"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
		return
	}
	ref, err := h.assessSvc.AttachFile(c.Request.Context(), claims.UserID, id, slot, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

// ValidateSlot runs collaborator-side validation of the slot's file.
func (h *Handler) ValidateSlot(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	slot, err := parseSlot(c.Param("slot"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	h.counters.ValidationRun()
	status, err := h.assessSvc.ValidateSlot(c.Request.Context(), claims.UserID, id, slot)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SubmitDraft runs the full submission pipeline.
func (h *Handler) SubmitDraft(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid draft id", err))
		return
	}
	result, err := h.assessSvc.Submit(c.Request.Context(), claims.UserID, id)
	if err != nil {
		h.counters.SubmissionRejected()
		abortWithDomainError(c, err)
		return
	}
	h.counters.SubmissionAccepted()
	c.JSON(http.StatusAccepted, result)
}

func parseSlot(raw string) (assessment.Slot, error) {
	switch assessment.Slot(raw) {
	case assessment.SlotPowerCurve:
		return assessment.SlotPowerCurve, nil
	case assessment.SlotHistory:
		return assessment.SlotHistory, nil
	}
	return "", &HTTPError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "unknown file slot"}
}
