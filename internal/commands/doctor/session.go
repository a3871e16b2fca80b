package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hay-kot/threadline/internal/core/session"
)

// expiryWarning is how close to expiry a token is reported.
const expiryWarning = 24 * time.Hour

// SessionCheck inspects the stored session token.
type SessionCheck struct {
	store session.Store
	fix   bool
	now   func() time.Time
}

// NewSessionCheck creates a session check. If fix is true, expired or
// unreadable sessions are removed.
func NewSessionCheck(store session.Store, fix bool) *SessionCheck {
	return &SessionCheck{store: store, fix: fix, now: time.Now}
}

func (c *SessionCheck) Name() string {
	return "Session"
}

func (c *SessionCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	sess, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNoSession):
		result.add("Logged in", StatusWarn, "no session; run 'threadline login --token <token>'")
		return result
	case err != nil:
		c.clear(ctx, &result, "Session file", "unreadable session", err.Error())
		return result
	}

	now := c.now()
	exp, hasExp := sess.Credential.ExpiresAt()

	switch {
	case sess.Credential.Expired(now):
		c.clear(ctx, &result, "Token", "expired session", "expired "+exp.Local().Format(time.DateTime))
		return result
	case hasExp && exp.Sub(now) < expiryWarning:
		result.add("Token", StatusWarn, "expires in "+exp.Sub(now).Round(time.Minute).String())
	case hasExp:
		result.add("Token", StatusPass, "expires "+exp.Local().Format(time.DateTime))
	default:
		result.add("Token", StatusPass, "no expiry claim")
	}

	if sess.User.ID == 0 {
		result.add("User", StatusWarn, "unknown user id; log in again with --user-id")
	} else {
		detail := fmt.Sprintf("user %d", sess.User.ID)
		if sess.User.Username != "" {
			detail += " (" + sess.User.Username + ")"
		}
		result.add("User", StatusPass, detail)
	}

	return result
}

// clear reports a broken session, removing it when fixing.
func (c *SessionCheck) clear(ctx context.Context, result *Result, label, what, detail string) {
	if !c.fix {
		result.addFixable(label, StatusFail, detail)
		return
	}

	if err := c.store.Clear(ctx); err != nil {
		result.add(label, StatusFail, fmt.Sprintf("failed to remove %s: %v", what, err))
		return
	}
	result.add(label, StatusPass, "removed "+what)
}
