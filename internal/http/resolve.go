package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"trackbridge/internal/core"
	"trackbridge/pkg/musiclink"
)

// maxRequestBody bounds a resolve request.
const maxRequestBody = 64 * 1024

var validate = validator.New()

type resolveRequest struct {
	Text string `json:"text" validate:"required,max=8192"`
	// MessageID identifies a chat message; redeliveries get the cached answer.
	MessageID    string `json:"message_id,omitempty" validate:"max=256"`
	ExpandAlbums bool   `json:"expand_albums,omitempty"`
}

type refResponse struct {
	core.ResourceRef
	URL string `json:"url"`
}

type itemResponse struct {
	Source      refResponse                  `json:"source"`
	Title       string                       `json:"title,omitempty"`
	Artist      string                       `json:"artist,omitempty"`
	Equivalents map[core.Service]refResponse `json:"equivalents"`
	Error       string                       `json:"error,omitempty"`
	ErrorKind   string                       `json:"error_kind,omitempty"`
}

type resolveResponse struct {
	ID       string                         `json:"id"`
	Items    []itemResponse                 `json:"items"`
	Playable map[core.Service][]refResponse `json:"playable,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !s.flood.Allow(clientKey(r)) {
		s.metrics.RateLimitedTotal.Inc()
		s.reply(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	var req resolveRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.reply(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.reply(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cacheKey := ""
	if req.MessageID != "" {
		cacheKey = req.MessageID
		if req.ExpandAlbums {
			cacheKey += "#playable"
		}
		if cached, ok := s.messages.Get(cacheKey); ok {
			s.metrics.DuplicatesTotal.Inc()
			s.logger.Debug("Answering redelivered message from cache", zap.String("messageID", req.MessageID))
			w.Header().Set("X-Duplicate", "true")
			s.reply(w, http.StatusOK, cached)
			return
		}
	}

	result, err := s.resolver.Resolve(r.Context(), req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, r.Context().Err()) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("Failed to resolve message", zap.Error(err))
		s.reply(w, status, errorResponse{Error: err.Error()})
		return
	}

	response := toResponse(result)
	if req.ExpandAlbums {
		response.Playable = lo.MapValues(s.resolver.Playable(r.Context(), result),
			func(refs []core.ResourceRef, _ core.Service) []refResponse {
				return lo.Map(refs, func(ref core.ResourceRef, _ int) refResponse { return toRef(ref) })
			})
	}

	if cacheKey != "" {
		s.messages.Add(cacheKey, response)
	}
	s.reply(w, http.StatusOK, response)
}

func (s *Server) reply(w http.ResponseWriter, status int, payload any) {
	s.metrics.recordRequest(status)
	writeJSON(w, status, payload)
}

func toRef(ref core.ResourceRef) refResponse {
	return refResponse{ResourceRef: ref, URL: musiclink.CanonicalURL(ref)}
}

func toResponse(result *core.Result) *resolveResponse {
	items := make([]itemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		out := itemResponse{
			Source:      toRef(item.Source),
			Title:       item.Title,
			Artist:      item.Artist,
			Equivalents: lo.MapValues(item.Equivalents, func(ref core.ResourceRef, _ core.Service) refResponse { return toRef(ref) }),
		}
		if item.Err != nil {
			out.Error = item.Err.Error()
			out.ErrorKind = core.ErrorKind(item.Err)
		}
		items = append(items, out)
	}
	return &resolveResponse{ID: result.ID, Items: items}
}

// clientKey identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr when a proxy header was present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
