package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/logger"
)

// Error codes returned in the "code" field.
const (
	codeBadRequest   = "bad_request"
	codeInvalidQuery = "invalid_query"
	codeNotFound     = "not_found"
	codeStorage      = "storage_error"
	codeInternal     = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Query       string `json:"query,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// handleDomainError maps the closed error set onto HTTP statuses.
// Storage and unknown errors never expose their message.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)

	switch domain.KindOf(err) {
	case domain.KindInvalidQuery:
		resp := ErrorResponse{Code: codeInvalidQuery, Message: domain.ErrInvalidQuery.Error()}
		var iq *domain.InvalidQueryError
		if errors.As(err, &iq) {
			resp.Query = iq.Query
			resp.Explanation = iq.Explanation
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case domain.KindMalformedInput:
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case domain.KindIO:
		log.Error("storage error", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeStorage, domain.ErrStorage.Error())
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
