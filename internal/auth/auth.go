// Package auth resolves the request principal and answers "may this user
// touch this project". Authentication itself happens upstream; the proxy
// passes the verified email in a header.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/database"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type ctxKey struct{}

// WithUser stores the principal in ctx.
func WithUser(ctx context.Context, u *database.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the principal stored by WithUser, or nil.
func UserFrom(ctx context.Context) *database.User {
	u, _ := ctx.Value(ctxKey{}).(*database.User)
	return u
}

type Authenticator struct {
	db     *database.DB
	header string
}

func NewAuthenticator(db *database.DB, header string) *Authenticator {
	return &Authenticator{db: db, header: header}
}

// Authenticate looks up the active user named by the configured header.
func (a *Authenticator) Authenticate(r *http.Request) (*database.User, error) {
	email := strings.TrimSpace(r.Header.Get(a.header))
	if email == "" {
		return nil, ErrUnauthenticated
	}
	u, err := a.db.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// Authorizer grants admins everything and other users the projects they
// were given access to.
type Authorizer struct {
	db *database.DB
}

func NewAuthorizer(db *database.DB) *Authorizer {
	return &Authorizer{db: db}
}

func (a *Authorizer) CheckProject(u *database.User, projectID int64) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if u.IsAdmin {
		return nil
	}
	ok, err := a.db.HasProjectAccess(u.ID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// CheckReport resolves the report's project first. It returns (false, nil)
// when the report does not exist.
func (a *Authorizer) CheckReport(u *database.User, reportID int64) (bool, error) {
	r, err := a.db.GetReport(reportID)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}
	return true, a.CheckProject(u, r.ProjectID)
}
