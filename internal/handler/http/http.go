package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/entity"
)

var (
	idRegexp  = regexp.MustCompile(`^[a-f\d]{8}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{12}$`)
	urlRegexp = regexp.MustCompile(`^https?://`)
)

type JobService interface {
	Start(ctx context.Context, url string, format entity.OutputFormat) (*entity.Job, error)
	Cancel(id string) error
}

type JobReader interface {
	Get(ctx context.Context, id string) (*entity.Job, error)
	List(ctx context.Context) ([]*entity.Job, error)
}

type startRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

func NewStartJobHandler(srv JobService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StartJobHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if !urlRegexp.MatchString(req.URL) {
			http.Error(w, "Playlist url must be http or https", http.StatusBadRequest)

			return
		}

		format := entity.OutputFormat(req.Format)
		if req.Format == "" {
			format = entity.FormatRawContainer
		}

		if !format.Valid() {
			http.Error(w, "Unknown output format", http.StatusBadRequest)

			return
		}

		j, err := srv.Start(r.Context(), req.URL, format)
		if err != nil {
			log.Error("Cannot start job", slog.Any("error", err))
			http.Error(w, "Cannot start job", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(startResponse{JobID: j.ID}); err != nil {
			log.Error("Cannot write response", slog.Any("error", err))
		}
	}
}

func NewJobStatusHandler(repo JobReader, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "JobStatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		j, err := repo.Get(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFound):
				http.Error(w, "Job not found", http.StatusNotFound)
			default:
				log.Error("Cannot get job", slog.String("id", id), slog.Any("error", err))
				http.Error(w, "Cannot get job", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(j); err != nil {
			log.Error("Cannot write response", slog.Any("error", err))
		}
	}
}

func NewJobListHandler(repo JobReader, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "JobListHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := repo.List(r.Context())
		if err != nil {
			log.Error("Cannot list jobs", slog.Any("error", err))
			http.Error(w, "Cannot list jobs", http.StatusInternalServerError)

			return
		}

		if jobs == nil {
			jobs = []*entity.Job{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jobs); err != nil {
			log.Error("Cannot write response", slog.Any("error", err))
		}
	}
}

func NewCancelJobHandler(srv JobService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CancelJobHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if err := srv.Cancel(id); err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFound):
				http.Error(w, "Job not found", http.StatusNotFound)
			default:
				log.Error("Cannot cancel job", slog.String("id", id), slog.Any("error", err))
				http.Error(w, "Cannot cancel job", http.StatusInternalServerError)
			}

			return
		}

		w.Write([]byte("done"))
	}
}
