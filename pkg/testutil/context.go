package testutil

import (
	"net/http"

	id "campusreg/pkg/domain"
	"campusreg/pkg/requestcontext"
)

// AsUser places the user (and optionally a session) in the request context the
// same way the auth middleware does, for handler tests that skip token parsing.
func AsUser(req *http.Request, userID id.UserID, sessionID ...string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	if len(sessionID) > 0 {
		ctx = requestcontext.WithSessionID(ctx, sessionID[0])
	}
	return req.WithContext(ctx)
}
