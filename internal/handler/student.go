package handler

import (
	"net/http"
	"strconv"

	"github.com/sekolah/school-api/internal/model"
)

// checkGraduation godoc
// @Summary      Check graduation
// @Description  Look up graduation results by name or NISN
// @Tags         students
// @Produce      json
// @Param        search  query     string  true  "Name substring or exact NISN"
// @Success      200     {object}  Response
// @Failure      400     {object}  Response
// @Failure      404     {object}  Response
// @Router       /api/students/check [get]
func (h *Handler) checkGraduation(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.Check(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", students)
}

// listStudents godoc
// @Summary      List students
// @Tags         students
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Name or NISN substring"
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 10)"
// @Success      200     {object}  Response
// @Failure      401     {object}  Response
// @Router       /api/students [get]
func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	items, pagination, err := h.students.List(r.Context(), model.StudentFilter{
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []model.Student{}
	}
	h.respondJSON(w, http.StatusOK, Response{Success: true, Data: items, Pagination: &pagination})
}

// createStudent godoc
// @Summary      Create student
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      model.StudentInput  true  "Student"
// @Success      201   {object}  Response
// @Failure      400   {object}  Response
// @Router       /api/students [post]
func (h *Handler) createStudent(w http.ResponseWriter, r *http.Request) {
	var in model.StudentInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.respondErr(w, r, err)
		return
	}
	st, err := h.students.Create(r.Context(), in)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusCreated, "student created successfully", st)
}

// updateStudent godoc
// @Summary      Update student
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Student ID"
// @Param        body  body      model.StudentInput  true  "Student"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Failure      404   {object}  Response
// @Router       /api/students/{id} [put]
func (h *Handler) updateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	var in model.StudentInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.respondErr(w, r, err)
		return
	}
	st, err := h.students.Update(r.Context(), id, in)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "student updated successfully", st)
}

// deleteStudent godoc
// @Summary      Delete student
// @Tags         students
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Student ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/students/{id} [delete]
func (h *Handler) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if err := h.students.Delete(r.Context(), id); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "student deleted successfully", nil)
}

// studentStats godoc
// @Summary      Graduation statistics
// @Tags         students
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Router       /api/students/stats [get]
func (h *Handler) studentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.students.Stats(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", stats)
}
