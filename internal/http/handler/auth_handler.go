package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/http/middleware"
	"github.com/hostbridge/hostbridge/internal/http/response"
	"github.com/hostbridge/hostbridge/internal/observability"
	"github.com/hostbridge/hostbridge/internal/service"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthRoleCookie     = "oauth_role"
	oauthReceiverCookie = "oauth_receiver"
	stateCookieTTL      = 10 * time.Minute
)

// callbackPage runs in the sign-in popup. It hands the credential to
// the opener window via postMessage, mirrors it into the shared store
// for the opener's fallback poll, then closes itself. Sign-ins started
// from a process have no opener; they pass a loopback receiver address
// the page posts the credential to instead.
var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head><title>Signing in…</title></head>
<body>
<p>Sign-in complete. You can close this window.</p>
<script>
(function () {
	var token = {{.Token}};
	var origin = {{.Origin}};
	try {
		window.localStorage.setItem("auth_token", token);
	} catch (e) {}
	if (window.opener) {
		window.opener.postMessage({ type: "AUTH_SUCCESS", token: token }, origin);
	}
	var receiver = {{.Receiver}};
	if (receiver) {
		fetch(receiver, { method: "POST", mode: "no-cors", body: token }).catch(function () {});
	}
	setTimeout(function () { window.close(); }, 100);
})();
</script>
</body>
</html>
`))

type userView struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

type AuthHandler struct {
	auth            service.AuthServiceInterface
	frontendBaseURL string
}

func NewAuthHandler(auth service.AuthServiceInterface, frontendBaseURL string) *AuthHandler {
	return &AuthHandler{auth: auth, frontendBaseURL: frontendBaseURL}
}

// GoogleLogin starts the provider handshake. The role rides along in a
// cookie so the callback page does not need to know it; the opener
// decides the destination.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "host" {
		role = "controller"
	}
	state := uuid.NewString()
	setTempCookie(w, oauthStateCookie, state)
	setTempCookie(w, oauthRoleCookie, role)
	if receiver, ok := loopbackReceiver(r.URL.Query().Get("receiver")); ok {
		setTempCookie(w, oauthReceiverCookie, receiver)
	}
	observability.Audit(r, "auth.google.start", slog.String("role", role))
	http.Redirect(w, r, h.auth.GoogleLoginURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	receiver := ""
	if rc, rcErr := r.Cookie(oauthReceiverCookie); rcErr == nil {
		if v, ok := loopbackReceiver(rc.Value); ok {
			receiver = v
		}
	}
	clearTempCookie(w, oauthStateCookie)
	clearTempCookie(w, oauthRoleCookie)
	clearTempCookie(w, oauthReceiverCookie)
	if err != nil || state == "" || cookie.Value != state {
		observability.Audit(r, "auth.google.state_mismatch")
		h.failLogin(w, r, "invalid_state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		h.failLogin(w, r, "missing_code")
		return
	}

	user, token, err := h.auth.LoginWithGoogleCode(r.Context(), code)
	if err != nil {
		observability.Audit(r, "auth.google.failed", slog.String("error", err.Error()))
		h.failLogin(w, r, "auth_failed")
		return
	}
	observability.Audit(r, "auth.google.success", slog.Uint64("user_id", uint64(user.ID)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(w, map[string]string{
		"Token":    token,
		"Origin":   h.frontendBaseURL,
		"Receiver": receiver,
	}); err != nil {
		slog.Error("render callback page", "error", err)
	}
}

// Verify answers the dashboard's session probe.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Verify(r.Context(), middleware.BearerToken(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredential),
			errors.Is(err, service.ErrInvalidCredential),
			errors.Is(err, service.ErrExpiredOrRevoked):
			response.AuthError(w, http.StatusUnauthorized, err.Error())
		default:
			response.AuthError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}
	response.JSON(w, http.StatusOK, map[string]userView{"user": viewOf(user)})
}

// Logout revokes the session. The response is success even when the
// token is absent or already gone: the caller only needs to know it
// may drop the credential.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(middleware.BearerToken(r)); err != nil {
		slog.Error("revoke session", "error", err)
	}
	observability.Audit(r, "auth.logout")
	response.Success(w, http.StatusOK, nil)
}

func (h *AuthHandler) failLogin(w http.ResponseWriter, r *http.Request, reason string) {
	dest := h.frontendBaseURL + "/login.html?error=" + url.QueryEscape(reason)
	http.Redirect(w, r, dest, http.StatusFound)
}

// loopbackReceiver admits only local listener addresses, so a crafted
// sign-in link cannot siphon the credential to a remote receiver.
func loopbackReceiver(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return "", false
	}
	switch u.Hostname() {
	case "127.0.0.1", "localhost", "::1":
	default:
		return "", false
	}
	return u.String(), true
}

func viewOf(u *domain.User) userView {
	return userView{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.Name,
		ProfileImage: u.AvatarURL,
	}
}

func setTempCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTempCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
