package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/httputil"
)

const ownerParam = "userId"

// OwnershipMiddleware rejects a request that names a userId (query string
// or body) other than the resolved identity. It must run after
// IdentityMiddleware. The body is inspected whatever its Content-Type,
// since handlers decode it without checking.
type OwnershipMiddleware struct{}

func NewOwnershipMiddleware() *OwnershipMiddleware {
	return &OwnershipMiddleware{}
}

func (m *OwnershipMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity == nil {
			httputil.WriteError(w, apperrors.Unauthenticated())
			return
		}

		claimed, err := claimedUserIDs(r)
		if err != nil {
			log.Error().Err(err).Msg("ownership middleware: failed to read body")
			httputil.WriteError(w, apperrors.BadRequest("Failed to read request body"))
			return
		}

		for _, userID := range claimed {
			if userID != identity.ID {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventOwnershipDenied,
					UserID:  identity.ID,
					Details: map[string]interface{}{"requestedUserId": userID, "path": r.URL.Path},
				})
				httputil.WriteError(w, apperrors.Unauthorized("Cannot act on another user's resources"))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// claimedUserIDs returns every non-empty userId the request carries. The
// body is restored for the next handler.
func claimedUserIDs(r *http.Request) ([]string, error) {
	var ids []string

	if v := r.URL.Query().Get(ownerParam); v != "" {
		ids = append(ids, v)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return ids, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		UserID string `json:"userId"`
	}
	// A body that is not a JSON object is left for the handler to reject.
	if json.Unmarshal(body, &payload) == nil && payload.UserID != "" {
		ids = append(ids, payload.UserID)
	}
	return ids, nil
}
