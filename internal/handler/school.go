package handler

import (
	"net/http"

	"github.com/sekolah/school-api/internal/model"
)

// getSchoolInfo godoc
// @Summary      School profile
// @Tags         school
// @Produce      json
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/school/info [get]
func (h *Handler) getSchoolInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.school.Get(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", info)
}

// updateSchoolInfo godoc
// @Summary      Update school profile
// @Tags         school
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      model.SchoolInfoInput  true  "School profile"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Router       /api/school/info [put]
func (h *Handler) updateSchoolInfo(w http.ResponseWriter, r *http.Request) {
	var in model.SchoolInfoInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.respondErr(w, r, err)
		return
	}
	info, err := h.school.Update(r.Context(), in)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "school info updated successfully", info)
}
