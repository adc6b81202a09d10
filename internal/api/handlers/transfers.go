package handlers

import (
	"net/http"
	"time"

	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
)

const downloadLinkTTL = 15 * time.Minute

type transferView struct {
	models.Transfer
	SenderUsername    string                   `json:"sender_username"`
	ModeratorUsername *string                  `json:"moderator_username"`
	RecipientsInfo    []services.RecipientInfo `json:"recipients,omitempty"`
}

func newTransferView(t *models.Transfer) transferView {
	v := transferView{Transfer: *t, SenderUsername: t.Sender.Username}
	if t.Moderator != nil {
		v.ModeratorUsername = &t.Moderator.Username
	}
	return v
}

type completeRequest struct {
	Action string `json:"action"`
}

// CreateDraft godoc
// @Summary Get or create the caller's draft transfer
// @Tags Transfers
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/transfers/draft [post]
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.Transfers.GetOrCreateDraft(r.Context(), middleware.UserFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Draft ready",
		Data:    draft,
	})
}

// ListTransfers godoc
// @Summary List formed and finalized transfers
// @Description Senders see their own transfers, moderators see all.
// @Tags Transfers
// @Produce json
// @Param status query string false "formed, completed or rejected"
// @Param formed-at-range query string false "YYYY-MM-DD,YYYY-MM-DD (inclusive)"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/transfers [get]
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := services.ParseTransferFilter(q.Get("status"), q.Get("formed-at-range"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	transfers, err := h.Transfers.List(r.Context(), middleware.UserFrom(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]transferView, 0, len(transfers))
	for i := range transfers {
		views = append(views, newTransferView(&transfers[i]))
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfers retrieved successfully",
		Data:    views,
	})
}

// GetTransfer godoc
// @Summary Get a transfer with its recipients
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Success 200 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/transfers/{id} [get]
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.Transfers.Get(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view := newTransferView(t)
	if view.RecipientsInfo, err = h.Transfers.RecipientsInfo(r.Context(), t.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfer retrieved successfully",
		Data:    view,
	})
}

// UploadTransferFile godoc
// @Summary Attach or replace the file of a draft
// @Tags Transfers
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Transfer id"
// @Param file formData file true "File to send"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /api/v1/transfers/{id} [put]
func (h *Handler) UploadTransferFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	up, cleanup, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()

	t, err := h.Transfers.SetFile(r.Context(), middleware.UserFrom(r.Context()), id, up)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File uploaded successfully",
		Data:    t,
	})
}

// DeleteTransfer godoc
// @Summary Delete a draft
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/transfers/{id} [delete]
func (h *Handler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Transfers.Delete(r.Context(), middleware.UserFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfer deleted",
	})
}

// FormTransfer godoc
// @Summary Submit a draft for moderation
// @Description Fails with every missing requirement listed in errors.
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/transfers/{id}/form [put]
func (h *Handler) FormTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.Transfers.Form(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfer formed",
		Data:    t,
	})
}

// CompleteTransfer godoc
// @Summary Complete or reject a formed transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path int true "Transfer id"
// @Param body body completeRequest true "complete or reject"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/v1/transfers/{id}/complete [put]
func (h *Handler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input completeRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	decision, err := services.ParseDecision(input.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.Transfers.Complete(r.Context(), middleware.UserFrom(r.Context()), id, decision)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transfer " + string(t.Status),
		Data:    t,
	})
}

// DownloadTransferFile godoc
// @Summary Presigned download link for a transfer's file
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/transfers/{id}/file [get]
func (h *Handler) DownloadTransferFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.Transfers.Get(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if t.File == "" || h.Files == nil {
		utils.Fail(w, http.StatusNotFound, string(services.KindNotFound), "File not found")
		return
	}

	url, err := h.Files.PresignGet(r.Context(), t.File, downloadLinkTTL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Presigned download URL generated successfully",
		Data: map[string]any{
			"url":      url,
			"filename": t.FileName,
			"size":     t.FileSize,
		},
	})
}
