package handlers

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
)

const stateCookie = "oauth_state"

type sessionView struct {
	SessionID string       `json:"session_id"`
	User      *models.User `json:"user"`
}

// Signup godoc
// @Summary Register a new user
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.Credentials true "Username and password"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var input services.Credentials
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Identity.Register(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "User registered successfully",
		Data:    user,
	})
}

// Signin godoc
// @Summary Sign in with username and password
// @Description Sets the session_id cookie; the same id may be sent in the Session-Id header.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.Credentials true "Username and password"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 429 {object} utils.Payload
// @Router /api/v1/signin [post]
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var input services.Credentials
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Identity.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Login successful",
		Data:    sessionView{SessionID: token, User: user},
	})
}

// Signout godoc
// @Summary Sign out
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/signout [post]
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Revoke(r.Context(), middleware.SessionToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.Production,
		HttpOnly: true,
		SameSite: h.sameSite(),
	})

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// Session godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Session is active",
		Data:    middleware.UserFrom(r.Context()),
	})
}

// UpdateMe godoc
// @Summary Update username or password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.ProfileInput true "Fields to change"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/me [put]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input services.ProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Identity.UpdateProfile(r.Context(), middleware.UserFrom(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Profile updated",
		Data:    user,
	})
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags Auth
// @Param redirect query string false "login or register"
// @Success 307
// @Failure 404 {object} utils.Payload
// @Router /api/v1/auth/google/login [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.Fail(w, http.StatusNotFound, string(services.KindNotFound), "Google sign-in is not configured")
		return
	}

	flow := r.URL.Query().Get("redirect")
	if flow != "register" {
		flow = "login"
	}

	state, err := GenerateState(map[string]string{"flow": flow})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		Secure:   h.Production,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Tags Auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 307
// @Failure 400 {object} utils.Payload
// @Router /api/v1/auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.Fail(w, http.StatusNotFound, string(services.KindNotFound), "Google sign-in is not configured")
		return
	}

	state := r.FormValue("state")
	saved, err := r.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(saved.Value), []byte(state)) != 1 {
		invalidInput(w, "Invalid OAuth state")
		return
	}
	stateData, err := DecodeState(state)
	if err != nil {
		invalidInput(w, "Invalid OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	flow := stateData["flow"]
	googleUser, err := h.Google.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		h.Log.WithError(err).Warn("google exchange failed")
		h.redirectFrontend(w, r, "/login", url.Values{"error": {"google_failed"}})
		return
	}

	user, err := h.Identity.FindOrCreateExternal(r.Context(), strings.ToLower(googleUser.Email), flow == "register")
	switch {
	case err == nil:
	case flow == "register" && services.IsKind(err, services.KindAlreadyExists):
		h.redirectFrontend(w, r, "/login", url.Values{"error": {"user_already_exists"}})
		return
	case services.IsKind(err, services.KindNotFound):
		h.redirectFrontend(w, r, "/register", url.Values{"error": {"user_not_found"}})
		return
	default:
		h.writeError(w, r, err)
		return
	}

	token, err := h.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)

	status := "success_login"
	if flow == "register" {
		status = "success_register"
	}
	h.redirectFrontend(w, r, "/", url.Values{"status": {status}})
}

func (h *Handler) redirectFrontend(w http.ResponseWriter, r *http.Request, path string, query url.Values) {
	target := strings.TrimRight(h.FrontendURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		Secure:   h.Production,
		HttpOnly: true,
		SameSite: h.sameSite(),
	})
}

// SameSite=None lets the separately hosted frontend send the cookie in
// production.
func (h *Handler) sameSite() http.SameSite {
	if h.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
