package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/app"
)

func (h *handlers) createTest(w http.ResponseWriter, r *http.Request) {
	var in app.TestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	test, err := h.svc.Tests.CreateTest(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, test)
}

func (h *handlers) updateTest(w http.ResponseWriter, r *http.Request) {
	var patch app.TestPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	test, err := h.svc.Tests.UpdateTest(r.Context(), identity(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, test)
}

func (h *handlers) deleteTest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Tests.DeleteTest(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addQuestion(w http.ResponseWriter, r *http.Request) {
	var in app.QuestionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.svc.Tests.AddQuestion(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

func (h *handlers) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Tests.DeleteQuestion(r.Context(), identity(r), chi.URLParam(r, "id"), chi.URLParam(r, "questionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) publish(w http.ResponseWriter, r *http.Request) {
	test, err := h.svc.Tests.Publish(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, test)
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var in app.SessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.svc.Tests.CreateSession(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *handlers) removeCandidate(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.svc.Candidates.Remove(r.Context(), uid); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("candidate", uid).Str("by", identity(r).UID).Msg("candidate removal requested")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) saveProfile(w http.ResponseWriter, r *http.Request) {
	var in app.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Candidates.SaveProfile(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
