package handler

import (
	"net/http"

	"github.com/sekolah/school-api/internal/model"
)

// login godoc
// @Summary      Login
// @Description  Exchange username and password for a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      model.LoginRequest  true  "Credentials"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /api/auth/login [post]
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "login successful", resp)
}

// verifyToken godoc
// @Summary      Verify token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Failure      401  {object}  Response
// @Failure      403  {object}  Response
// @Router       /api/auth/verify [get]
func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	h.respondOK(w, http.StatusOK, "token valid", map[string]*model.UserInfo{"user": userFrom(r.Context())})
}

// changePassword godoc
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      model.ChangePasswordRequest  true  "Current and new password"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /api/auth/change-password [post]
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), userFrom(r.Context()).ID, req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "password changed successfully", nil)
}
