package recommend

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
)

// InsufficientDataMessage is returned when a training request is rejected
// for lack of labelled bookings.
const InsufficientDataMessage = "Not enough data to train the model. Need at least 5 bookings with user feedback."

// Engine is the subset of recommend.Engine served over HTTP.
type Engine interface {
	RecommendDetailed(ctx context.Context, req recommend.Request) recommend.Result
	TrainWithReport(ctx context.Context) (recommend.Report, error)
	Status(ctx context.Context) recommend.Status
	Config() recommend.Config
}

// Options tune the router.
type Options struct {
	// TrainRatePerMinute caps train requests per client IP. Zero disables the limit.
	TrainRatePerMinute int
	Log                logger.Logger
}

type handler struct {
	engine    Engine
	decisions decisionlog.Store
	validate  *validator.Validate
	log       logger.Logger
}

// RecommendationRequest is the body of POST /api/recommendations. Missing
// coordinates default to the engine's default location and a missing
// charger type to "fast".
type RecommendationRequest struct {
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
	ChargerType string   `json:"charger_type" validate:"omitempty,oneof=rapid fast slow"`
	Limit       int      `json:"limit" validate:"min=0,max=50"`
}

// TrainResponse is the body returned by POST /api/model/train.
type TrainResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Samples   int            `json:"samples,omitempty"`
	Eligible  int            `json:"eligible"`
	Labels    map[string]int `json:"labels,omitempty"`
	Persisted bool           `json:"persisted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter returns the HTTP handler for the engine. decisions may be nil.
func NewRouter(engine Engine, decisions decisionlog.Store, opts Options) http.Handler {
	if decisions == nil {
		decisions = decisionlog.NopStore{}
	}
	h := &handler{
		engine:    engine,
		decisions: decisions,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger.OrNop(opts.Log),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/recommendations", h.recommend)
		r.Get("/decisions", h.queryDecisions)
		r.Route("/model", func(r chi.Router) {
			r.Get("/status", h.status)
			r.Group(func(r chi.Router) {
				if opts.TrainRatePerMinute > 0 {
					r.Use(httprate.LimitByIP(opts.TrainRatePerMinute, time.Minute))
				}
				r.Post("/train", h.train)
			})
		})
	})
	return r
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var body RecommendationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}
	if err := h.validate.Struct(body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return
	}
	req := recommend.Request{
		Location: h.engine.Config().DefaultLocation,
		Limit:    body.Limit,
	}
	if body.Lat != nil {
		req.Location.Lat = *body.Lat
	}
	if body.Lng != nil {
		req.Location.Lng = *body.Lng
	}
	ct := model.ChargerFast
	if body.ChargerType != "" {
		ct = model.ChargerType(body.ChargerType)
	}
	req.Preferences = &model.Preferences{ChargerType: ct}

	res := h.engine.RecommendDetailed(r.Context(), req)
	if res.Recommendations == nil {
		res.Recommendations = []recommend.Recommendation{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) train(w http.ResponseWriter, r *http.Request) {
	rep, err := h.engine.TrainWithReport(r.Context())
	resp := TrainResponse{
		RunID:     rep.RunID,
		Eligible:  rep.Eligible,
		Samples:   rep.Assembled,
		Labels:    rep.Labels,
		Persisted: rep.Persisted,
	}
	switch {
	case err == nil:
		resp.Success = true
		resp.Message = "Model trained successfully"
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, recommend.ErrInsufficientData):
		resp.Message = InsufficientDataMessage
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, recommend.ErrTrainingInProgress):
		resp.Message = "Training already in progress"
		writeJSON(w, http.StatusConflict, resp)
	default:
		h.log.Errorf("train request: %v", err)
		resp.Message = "Training failed"
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status(r.Context()))
}

func (h *handler) queryDecisions(w http.ResponseWriter, r *http.Request) {
	q := decisionlog.Query{Source: r.URL.Query().Get("source")}
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start must be RFC3339"})
			return
		}
		q.Start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end must be RFC3339"})
			return
		}
		q.End = t
	}
	if s := r.URL.Query().Get("station_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "station_id must be an integer"})
			return
		}
		q.StationID = id
	}
	records, err := h.decisions.Query(r.Context(), q)
	if err != nil {
		h.log.Errorf("decision query: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "decision log unavailable"})
		return
	}
	if records == nil {
		records = []decisionlog.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "min", "max":
		return fe.Field() + " must be between 0 and 50"
	default:
		return fe.Field() + " is invalid"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
