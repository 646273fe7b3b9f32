package apperror

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

func StatusCode(kind Kind) int {
	switch kind {
	case KindParse:
		return http.StatusUnprocessableEntity
	case KindDuplicateJob:
		return http.StatusConflict
	case KindExternalTool:
		return http.StatusBadGateway
	case KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON logs err and answers with its kind and message. The internal
// cause is logged but never sent to the client.
func WriteJSON(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := err.(*Error)
	if !ok {
		appErr = Wrap(err, KindInternal, "", "internal error")
	}

	if appErr.Internal != nil {
		log.Error("request error",
			"code", appErr.Kind,
			"internal_error", appErr.Internal.Error(),
		)
	} else {
		log.Warn("request error", "code", appErr.Kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(appErr.Kind))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   string(appErr.Kind),
		Code:    appErr.Kind,
		Message: appErr.Message,
	})
}
