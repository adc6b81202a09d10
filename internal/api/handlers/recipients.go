package handlers

import (
	"net/http"

	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
)

type recipientList struct {
	Recipients []models.Recipient `json:"recipients"`
	services.DraftSummary
}

// ListRecipients godoc
// @Summary List active recipients
// @Description Case-insensitive name prefix search. Signed-in callers also get their draft id and its recipient count.
// @Tags Recipients
// @Produce json
// @Param recipient-name query string false "Name prefix"
// @Success 200 {object} utils.Payload
// @Router /api/v1/recipients [get]
func (h *Handler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.Recipients.List(r.Context(), r.URL.Query().Get("recipient-name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := recipientList{Recipients: recipients}
	if user := middleware.UserFrom(r.Context()); user != nil {
		if out.DraftSummary, err = h.Transfers.DraftSummary(r.Context(), user); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Recipients retrieved successfully",
		Data:    out,
	})
}

// GetRecipient godoc
// @Summary Get a recipient
// @Tags Recipients
// @Produce json
// @Param id path int true "Recipient id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/recipients/{id} [get]
func (h *Handler) GetRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recipient, err := h.Recipients.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Recipient retrieved successfully",
		Data:    recipient,
	})
}

// CreateRecipient godoc
// @Summary Create a recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param body body services.RecipientInput true "Recipient"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/v1/recipients [post]
func (h *Handler) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var input services.RecipientInput
	if !decodeJSON(w, r, &input) {
		return
	}
	recipient, err := h.Recipients.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Recipient created",
		Data:    recipient,
	})
}

// UpdateRecipient godoc
// @Summary Edit a recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param id path int true "Recipient id"
// @Param body body services.RecipientInput true "Fields to change"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/recipients/{id} [put]
func (h *Handler) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input services.RecipientInput
	if !decodeJSON(w, r, &input) {
		return
	}
	recipient, err := h.Recipients.Update(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Recipient updated",
		Data:    recipient,
	})
}

// DeleteRecipient godoc
// @Summary Soft-delete a recipient
// @Description Also removes the recipient from every draft transfer.
// @Tags Recipients
// @Produce json
// @Param id path int true "Recipient id"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/recipients/{id} [delete]
func (h *Handler) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Recipients.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Recipient deleted",
	})
}

// AddRecipientToDraft godoc
// @Summary Add a recipient to the caller's draft
// @Description Creates the draft when the caller has none.
// @Tags Recipients
// @Produce json
// @Param id path int true "Recipient id"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/recipients/{id}/draft [post]
func (h *Handler) AddRecipientToDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	draft, err := h.Transfers.AddRecipient(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Recipient added to draft",
		Data:    draft,
	})
}

// UploadRecipientAvatar godoc
// @Summary Replace a recipient's avatar
// @Tags Recipients
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Recipient id"
// @Param avatar formData file true "Image"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Router /api/v1/recipients/{id}/avatar [post]
func (h *Handler) UploadRecipientAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	up, cleanup, ok := h.readUpload(w, r, "avatar")
	if !ok {
		return
	}
	defer cleanup()

	recipient, err := h.Recipients.SetAvatar(r.Context(), id, up)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Avatar updated",
		Data:    recipient,
	})
}
