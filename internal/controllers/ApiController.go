package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"listentier/internal/models"
	"listentier/internal/providers"
	"listentier/internal/services"
	"listentier/internal/structures"
)

const (
	maxRequestBodySize     = 1 << 20 // 1 MB
	defaultMaxImportBytes  = 256 << 20
	multipartMemoryLimit   = 32 << 20
	dateLayout             = "2006-01-02"
	internalErrorCode      = "INTERNAL"
	internalErrorMessage   = "Internal Server Error"
	payloadTooLargeMessage = "request body too large"
)

type ApiController struct {
	logger         providers.Logger
	service        services.HistoryServiceInterface
	cache          providers.CacheProviderInterface
	maxImportBytes int64
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Report is the partial ingest outcome when the merge succeeded but the write did not.
	Report *models.ImportReport `json:"report,omitempty"`
}

type mintPayload struct {
	Address string   `json:"address"`
	Genres  []string `json:"genres"`
}

type tierResponse struct {
	Tier       models.Tier `json:"tier"`
	Popularity float64     `json:"popularity"`
}

type rewardResponse struct {
	Reward          float64 `json:"reward"`
	TotalHours      float64 `json:"totalHours"`
	DistinctArtists int     `json:"distinctArtists"`
}

func NewApiController(conf *structures.Config, logger providers.Logger, service services.HistoryServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	maxImport := conf.WebServer.MaxImportBytes
	if maxImport <= 0 {
		maxImport = defaultMaxImportBytes
	}
	return &ApiController{
		logger:         logger,
		service:        service,
		cache:          cache,
		maxImportBytes: maxImport,
	}
}

func (ac *ApiController) writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ac.writeErrorReport(w, r, err, nil)
}

// writeErrorReport maps typed errors to their status. Untyped errors are logged and hidden behind a 500.
func (ac *ApiController) writeErrorReport(w http.ResponseWriter, r *http.Request, err error, report *models.ImportReport) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		ac.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Code: string(models.CodeBadRequest), Message: payloadTooLargeMessage})
		return
	}

	status := models.HTTPStatus(err)
	code := models.CodeOf(err)
	if code == "" {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
		ac.writeJSON(w, status, errorResponse{Code: internalErrorCode, Message: internalErrorMessage})
		return
	}
	if status >= http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
	}
	ac.writeJSON(w, status, errorResponse{Code: string(code), Message: err.Error(), Report: report})
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	cacheKey := r.URL.Path + "?" + r.URL.RawQuery
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	generation := ac.cache.Generation()
	result, err := compute()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return
	}

	ac.cache.SetIfGeneration(cacheKey, gson, generation)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// Import accepts one export document as the body, or several as multipart file parts.
func (ac *ApiController) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ac.maxImportBytes)

	docs, err := readDocuments(r)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	report, err := ac.service.Import(r.Context(), docs)
	if err != nil {
		ac.writeErrorReport(w, r, err, report)
		return
	}
	ac.writeJSON(w, http.StatusOK, report)
}

func readDocuments(r *http.Request) ([][]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, models.NewBadRequestError("empty request body")
		}
		return [][]byte{body}, nil
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, models.NewBadRequestError("malformed multipart body: %s", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	docs := make([][]byte, 0)
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			doc, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, models.NewBadRequestError("multipart body has no files")
	}
	return docs, nil
}

func (ac *ApiController) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := ac.service.Sync(r.Context())
	if err != nil {
		ac.writeErrorReport(w, r, err, report)
		return
	}
	ac.writeJSON(w, http.StatusOK, report)
}

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		from, to, err := parseRange(r)
		if err != nil {
			return nil, err
		}
		return ac.service.Stats(r.Context(), from, to)
	})
}

func (ac *ApiController) GetTopArtists(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		q, err := parseTopQuery(r)
		if err != nil {
			return nil, err
		}
		return ac.service.TopArtists(r.Context(), q)
	})
}

func (ac *ApiController) GetTopTracks(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		q, err := parseTopQuery(r)
		if err != nil {
			return nil, err
		}
		return ac.service.TopTracks(r.Context(), q)
	})
}

// GetTier reports the playtime tier, or the popularity tier when ?popularity is given.
func (ac *ApiController) GetTier(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		raw := r.URL.Query().Get("popularity")
		if raw == "" {
			return ac.service.TierReport(r.Context())
		}
		popularity, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewBadRequestError("popularity must be a number, got %q", raw)
		}
		t, err := ac.service.TierFromPopularity(popularity)
		if err != nil {
			return nil, err
		}
		return tierResponse{Tier: t, Popularity: popularity}, nil
	})
}

func (ac *ApiController) GetReward(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		report, err := ac.service.TierReport(r.Context())
		if err != nil {
			return nil, err
		}
		return rewardResponse{Reward: report.Reward, TotalHours: report.TotalHours, DistinctArtists: report.DistinctArtists}, nil
	})
}

func (ac *ApiController) Mint(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload mintPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ac.writeError(w, r, models.NewBadRequestError("invalid mint payload"))
		return
	}

	res, err := ac.service.Mint(r.Context(), payload.Address, payload.Genres)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, res)
}

func (ac *ApiController) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := ac.service.Clear(r.Context()); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTopQuery(r *http.Request) (services.TopQuery, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return services.TopQuery{}, err
	}
	q := services.TopQuery{Metric: r.URL.Query().Get("metric"), From: from, To: to}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return services.TopQuery{}, models.NewBadRequestError("limit must be a non-negative integer, got %q", raw)
		}
		q.Limit = n
	}
	return q, nil
}

// parseRange reads from/to as RFC3339 or YYYY-MM-DD. A bare date in to covers the whole day.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseBound(r.URL.Query().Get("from"), false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseBound(r.URL.Query().Get("to"), true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseBound(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, models.NewBadRequestError("invalid date %q, expected RFC3339 or YYYY-MM-DD", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
