package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/tutor-settlement/internal/api/middleware"
	"github.com/ayo6706/tutor-settlement/internal/api/problem"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// requestPrincipal builds the caller from the auth context. Only "admin" is a
// privileged role; anything else is an ordinary user.
func requestPrincipal(r *http.Request) (models.Principal, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return models.Principal{}, errors.New("missing user in auth context")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return models.Principal{}, errors.New("invalid user_id in auth context")
	}
	role := models.RoleUser
	if middleware.UserRoleFromContext(r.Context()) == models.RoleAdmin {
		role = models.RoleAdmin
	}
	return models.Principal{UserID: id, Role: role}, nil
}

// principalOrUnauthorized writes 401 and returns false when no caller is present.
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, err := requestPrincipal(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return models.Principal{}, false
	}
	return p, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for routes where the body may be omitted.
// An empty body leaves dst untouched, whatever the transfer encoding.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

type errorMapping struct {
	err         error
	status      int
	problemType string
}

var serviceErrors = []errorMapping{
	{service.ErrSessionNotFound, http.StatusNotFound, "settlement/session-not-found"},
	{service.ErrTransactionNotFound, http.StatusNotFound, "settlement/transaction-not-found"},
	{service.ErrInvalidSignature, http.StatusUnauthorized, "webhook/invalid-signature"},
	{service.ErrPaymentMismatch, http.StatusUnprocessableEntity, "webhook/payment-mismatch"},
	{models.ErrForbidden, http.StatusForbidden, "auth/insufficient-permissions"},
	{models.ErrInvalidRequest, http.StatusBadRequest, "request/invalid"},
	{models.ErrInvalidAmount, http.StatusUnprocessableEntity, "settlement/invalid-amount"},
	{models.ErrUnknownCurrency, http.StatusUnprocessableEntity, "settlement/unknown-currency"},
	{models.ErrParticipantLimitExceeded, http.StatusUnprocessableEntity, "settlement/participant-limit-exceeded"},
	{models.ErrNotParticipant, http.StatusUnprocessableEntity, "settlement/not-participant"},
	{models.ErrInvalidTransition, http.StatusConflict, "settlement/invalid-transition"},
	{models.ErrIncompleteSplit, http.StatusConflict, "settlement/incomplete-split"},
	{models.ErrPreviewMismatch, http.StatusConflict, "settlement/preview-mismatch"},
}

// respondServiceError maps domain and service errors to problem documents.
// Anything unrecognised is logged and reported as a 500 without details.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			RespondError(w, r, m.status, m.problemType, err.Error())
			return
		}
	}
	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	zap.L().Error(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "Failed to "+strings.ReplaceAll(op, "_", " "))
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
