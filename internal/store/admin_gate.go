package store

import (
	"database/sql"
	"errors"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// AdminGate answers the single question "is this caller an administrator".
// Superusers pass outright; everyone else needs an admin row in user_roles,
// matched by user id or email (imports sometimes only carry the email).
type AdminGate struct {
	app core.App
}

func NewAdminGate(app core.App) *AdminGate {
	return &AdminGate{app: app}
}

func (g *AdminGate) IsAdmin(auth *core.Record) bool {
	if auth == nil {
		return false
	}
	if auth.IsSuperuser() {
		return true
	}

	rec, err := g.app.FindFirstRecordByFilter(
		"user_roles",
		"(user_id = {:user} || user_email = {:email}) && role = 'admin'",
		dbx.Params{"user": auth.Id, "email": auth.Email()},
	)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			g.app.Logger().Error("admin gate: role lookup failed", "error", err, "user", auth.Id)
		}
		return false
	}
	return rec != nil
}
