// Package access decides whether a session may act on a patient's records.
//
// Every mutating operation and every sensitive read on profiles, snapshot
// history and feedback goes through Authorize (or Gate.Require) before a
// store is touched. There is no elevation path: a session's role comes from
// its token and is only changed by re-authenticating.
package access

import (
	"context"
	"log/slog"

	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/requestcontext"
)

// Role is fixed when a profile is created.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts only the two known roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "role must be one of [user admin]")
}

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

func (r Role) String() string { return string(r) }

// Session is the caller identity supplied by the transport layer.
// The zero Session is anonymous and satisfies no requirement.
type Session struct {
	Role      Role
	SubjectID id.PatientID
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

func (s Session) IsAnonymous() bool { return s.SubjectID.IsNil() || !s.Role.Valid() }

// SessionFromContext reads the session placed by the auth middleware.
func SessionFromContext(ctx context.Context) Session {
	return Session{
		Role:      Role(requestcontext.Role(ctx)),
		SubjectID: requestcontext.SubjectID(ctx),
	}
}

// Authorize reports whether sessionRole may perform an operation that needs
// requiredRole on subjectID's records.
//
// admin requirements are met only by admin sessions. user requirements are met
// by admins, or by a user acting on its own subject.
func Authorize(sessionRole, requiredRole Role, subjectID, sessionSubjectID id.PatientID) bool {
	if !sessionRole.Valid() {
		return false
	}
	switch requiredRole {
	case RoleAdmin:
		return sessionRole == RoleAdmin
	case RoleUser:
		if sessionRole == RoleAdmin {
			return true
		}
		return !sessionSubjectID.IsNil() && subjectID == sessionSubjectID
	default:
		return false
	}
}

// DeniedRecorder counts refusals.
type DeniedRecorder interface {
	IncrementDenied(required Role, action string)
}

// Gate wraps Authorize with logging and the AuthorizationDenied error.
type Gate struct {
	logger  *slog.Logger
	metrics DeniedRecorder
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m DeniedRecorder) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require returns a forbidden error when sess may not perform action on
// subjectID's records. Pass the zero PatientID for admin-only actions that
// have no subject.
func (g *Gate) Require(ctx context.Context, sess Session, required Role, subjectID id.PatientID, action string) error {
	if Authorize(sess.Role, required, subjectID, sess.SubjectID) {
		return nil
	}
	g.logger.WarnContext(ctx, "access denied",
		"action", action,
		"required_role", required,
		"session_role", sess.Role,
		"session_subject", sess.SubjectID,
		"subject", subjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if g.metrics != nil {
		g.metrics.IncrementDenied(required, action)
	}
	return dErrors.New(dErrors.CodeForbidden, "not authorized to "+action)
}

// RequireAdmin is Require with the admin role and no subject.
func (g *Gate) RequireAdmin(ctx context.Context, sess Session, action string) error {
	return g.Require(ctx, sess, RoleAdmin, id.PatientID{}, action)
}

// RequireSelfOrAdmin is Require with the user role on subjectID.
func (g *Gate) RequireSelfOrAdmin(ctx context.Context, sess Session, subjectID id.PatientID, action string) error {
	return g.Require(ctx, sess, RoleUser, subjectID, action)
}
