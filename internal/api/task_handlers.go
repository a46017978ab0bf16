package api

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"primetrade/internal/tasks"

	"github.com/gorilla/mux"
)

const (
	maxUploadBody   = 10 << 20
	maxUploadMemory = 4 << 20
)

type taskForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
	Email       string `json:"email"`

	image *tasks.Upload
	file  multipart.File
}

func (f *taskForm) close() {
	if f.file != nil {
		f.file.Close()
	}
}

// readTaskForm accepts multipart (with an optional "image" file),
// urlencoded or JSON bodies. It writes the error response itself.
func readTaskForm(w http.ResponseWriter, r *http.Request) (*taskForm, bool) {
	form := &taskForm{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(form); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request payload")
			return nil, false
		}
		return form, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return nil, false
		}
		writeJSONError(w, http.StatusBadRequest, "Invalid form data")
		return nil, false
	}
	form.Title = r.FormValue("title")
	form.Description = r.FormValue("description")
	form.Status = r.FormValue("status")
	form.DueDate = r.FormValue("dueDate")
	form.Email = r.FormValue("email")

	if r.MultipartForm == nil {
		return form, true
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		form.file = file
		form.image = &tasks.Upload{Filename: header.Filename, Body: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid image upload")
		return nil, false
	}
	return form, true
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	form, ok := readTaskForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	task, err := s.tasks.Create(r.Context(), tasks.CreateRequest{
		Title:       form.Title,
		Description: form.Description,
		Status:      form.Status,
		DueDate:     form.DueDate,
		Email:       form.Email,
		Image:       form.image,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Task created successfully",
		"task":    task,
	})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.ListByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	form, ok := readTaskForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	task, err := s.tasks.Update(r.Context(), mux.Vars(r)["id"], tasks.UpdateRequest{
		Title:       form.Title,
		Description: form.Description,
		Status:      form.Status,
		DueDate:     form.DueDate,
		Image:       form.image,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Task updated successfully",
		"task":    task,
	})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted successfully")
}
