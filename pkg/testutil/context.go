package testutil

import (
	"net/http"

	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/requestcontext"
)

// WithSession places the subject and role on the request context the way the
// auth middleware does for a validated bearer token.
func WithSession(req *http.Request, subject id.PatientID, role string) *http.Request {
	return req.WithContext(requestcontext.WithSession(req.Context(), subject, role))
}

// AsUser is WithSession with the user role.
func AsUser(req *http.Request, subject id.PatientID) *http.Request {
	return WithSession(req, subject, "user")
}

// AsAdmin is WithSession with the admin role and a fresh subject.
func AsAdmin(req *http.Request) *http.Request {
	return WithSession(req, id.NewPatientID(), "admin")
}

// WithRequestID adds a correlation id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
