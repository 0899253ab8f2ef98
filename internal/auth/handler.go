package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/transport"
	"github.com/frahmantamala/redteam-collab/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookies *CookieCodec
}

func NewHandler(svc ServiceAPI, cookies *CookieCodec) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookies:     cookies,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, sess, err := h.Service.Login(r.Context(), dto)
	h.finishLogin(w, r, u, sess, err)
}

func (h *Handler) DirectoryLogin(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, sess, err := h.Service.DirectoryLogin(r.Context(), dto)
	h.finishLogin(w, r, u, sess, err)
}

func (h *Handler) finishLogin(w http.ResponseWriter, r *http.Request, u *User, sess *Session, err error) {
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	ck, err := h.Cookies.Cookie(sess)
	if err != nil {
		h.Service.Logout(r.Context(), sess.ID)
		h.HandleServiceError(w, r, internal.NewInternalError("failed to issue session cookie", err))
		return
	}
	http.SetCookie(w, ck)
	h.WriteJSON(w, http.StatusOK, LoginResponse{Message: "Login successful", User: u})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Your account is pending approval by an administrator.",
		User:    u,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := h.Cookies.SessionID(r); ok {
		h.Service.Logout(r.Context(), sid)
	}
	http.SetCookie(w, h.Cookies.Clear())
	h.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrUnauthenticated)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) DirectoryTest(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.TestDirectory(r.Context()))
}

// Gate admits requests that carry a live session whose user is active, and
// attaches the user to the request context.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := h.Cookies.SessionID(r)
		if !ok {
			h.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}

		u, err := h.Service.ResolveSession(r.Context(), sid)
		if err != nil {
			if appErr, ok := internal.IsAppError(err); ok && appErr.Is(internal.ErrUnauthenticated) {
				http.SetCookie(w, h.Cookies.Clear())
			}
			h.HandleServiceError(w, r, err)
			return
		}

		ctx := ContextWithUser(r.Context(), u)
		ctx = logger.WithUser(ctx, u.ID, string(u.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
