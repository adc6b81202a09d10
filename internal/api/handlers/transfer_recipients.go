package handlers

import (
	"net/http"

	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/utils"
)

type commentRequest struct {
	Comment string `json:"comment"`
}

// GetTransferRecipient godoc
// @Summary Get one recipient entry of a transfer
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Param recipientID path int true "Recipient id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/transfers/{id}/recipients/{recipientID} [get]
func (h *Handler) GetTransferRecipient(w http.ResponseWriter, r *http.Request) {
	transferID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	row, err := h.Transfers.GetTransferRecipient(r.Context(), middleware.UserFrom(r.Context()), transferID, recipientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfer recipient retrieved successfully",
		Data:    row,
	})
}

// UpdateTransferRecipient godoc
// @Summary Edit the comment for one recipient of a draft
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path int true "Transfer id"
// @Param recipientID path int true "Recipient id"
// @Param body body commentRequest true "Comment"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/transfers/{id}/recipients/{recipientID} [put]
func (h *Handler) UpdateTransferRecipient(w http.ResponseWriter, r *http.Request) {
	transferID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	var input commentRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	row, err := h.Transfers.UpdateRecipientComment(r.Context(), middleware.UserFrom(r.Context()), transferID, recipientID, input.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Comment updated",
		Data:    row,
	})
}

// RemoveTransferRecipient godoc
// @Summary Remove a recipient from a draft
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Param recipientID path int true "Recipient id"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/transfers/{id}/recipients/{recipientID} [delete]
func (h *Handler) RemoveTransferRecipient(w http.ResponseWriter, r *http.Request) {
	transferID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	if err := h.Transfers.RemoveRecipient(r.Context(), middleware.UserFrom(r.Context()), transferID, recipientID); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Recipient removed from transfer",
	})
}
