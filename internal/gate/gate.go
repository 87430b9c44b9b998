// Package gate is the authorization checkpoint evaluated on every
// navigation: it holds rendering until session hydration has resolved,
// sends unauthenticated visitors to the login page and under-privileged
// ones to the unauthorized page.
package gate

import (
	"log/slog"
	"net/http"

	"github.com/malibag-society/malibag/internal/session"
)

// Redirect targets used by the gate and by handlers reacting to a lost
// session.
const (
	LoginPath        = "/auth/login"
	UnauthorizedPath = "/unauthorized"
)

// Gate evaluates route access against the session store.
type Gate struct {
	Sessions *session.Store
	Logger   *slog.Logger
}

// Require allows the listed roles through. An empty list admits any
// authenticated role. The check runs per navigation; nothing is cached
// across routes.
func (g Gate) Require(roles ...session.Role) func(http.Handler) http.Handler {
	allowed := make(map[session.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Render nothing until the durable-storage read has
			// resolved. Deciding earlier would flash-redirect an
			// operator whose persisted session simply has not loaded
			// yet.
			select {
			case <-g.Sessions.Ready():
			case <-r.Context().Done():
				return
			}

			st := g.Sessions.Snapshot()
			if !st.IsAuthenticated {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[st.User.Role]; !ok {
					if g.Logger != nil {
						g.Logger.Warn("route forbidden for role",
							slog.String("path", r.URL.Path),
							slog.String("role", string(st.User.Role)))
					}
					http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated admits any logged-in role.
func (g Gate) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.Require()
}
