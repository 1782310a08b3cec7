package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// rankings streams the spreadsheet and queues scorecards for the same rows.
func (h *handlers) rankings(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.svc.Rankings.Rank(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, ranking); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, export.Filename(ranking.Test.Stream, ranking.Session.Year)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Str("test", ranking.Test.ID).Msg("ranking download interrupted")
	}

	if err := h.svc.Rankings.PublishScorecards(context.WithoutCancel(r.Context()), ranking); err != nil {
		log.Error().Err(err).Str("test", ranking.Test.ID).Msg("scorecard job not queued")
	}
}
