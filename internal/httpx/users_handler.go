package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/users"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UserService interface {
	Authenticator
	Register(ctx context.Context, in users.RegisterInput) (string, error)
	Confirm(ctx context.Context, email, key string) error
	Login(ctx context.Context, email, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, key, password string) error
	Logout(ctx context.Context, p auth.Principal) error
	Details(ctx context.Context, p auth.Principal) (*users.User, error)
	UpdateDetails(ctx context.Context, p auth.Principal, patch users.DetailsPatch) error
	Contacts(ctx context.Context, p auth.Principal) ([]users.Contact, error)
	AddContact(ctx context.Context, p auth.Principal, in users.ContactInput) (int64, error)
	UpdateContact(ctx context.Context, p auth.Principal, patch users.ContactPatch) error
	DeleteContacts(ctx context.Context, p auth.Principal, ids []int64) (users.DeleteResult, error)
}

var _ UserService = (*users.Service)(nil)

type UsersHandler struct {
	Users UserService
	Auth  func(http.Handler) http.Handler
	Log   *zap.Logger
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Post("/user/register/", h.register)
	r.Post("/user/register/confirm/", h.confirm)
	r.Post("/user/login/", h.login)
	r.Post("/user/password_reset/", h.passwordReset)
	r.Post("/user/password_reset/confirm/", h.passwordResetConfirm)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth)
		r.Post("/user/logout/", h.logout)
		r.Get("/user/details/", h.details)
		r.Post("/user/details/", h.updateDetails)
		r.Get("/user/contact/", h.contacts)
		r.Post("/user/contact/", h.addContact)
		r.Put("/user/contact/", h.updateContact)
		r.Delete("/user/contact/", h.deleteContacts)
	})
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	key, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"Token": key})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (h *UsersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Users.Confirm(r.Context(), in.Email, in.Token); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	key, err := h.Users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"Token": key})
}

func (h *UsersHandler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Users.RequestPasswordReset(r.Context(), in.Email); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Users.ConfirmPasswordReset(r.Context(), in.Token, in.Password); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	if err := h.Users.Logout(r.Context(), p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) details(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	u, err := h.Users.Details(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) updateDetails(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var patch users.DetailsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Users.UpdateDetails(r.Context(), p, patch); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) contacts(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	cs, err := h.Users.Contacts(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *UsersHandler) addContact(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var in users.ContactInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	id, err := h.Users.AddContact(r.Context(), p, in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *UsersHandler) updateContact(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var patch users.ContactPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Users.UpdateContact(r.Context(), p, patch); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *UsersHandler) deleteContacts(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var in struct {
		IDs []int64 `json:"ids_contact"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if in.IDs == nil {
		writeError(w, h.Log, apperr.Validation("the required request parameter ids_contact is missing"))
		return
	}
	res, err := h.Users.DeleteContacts(r.Context(), p, in.IDs)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"Deleted": res.Deleted, "NotFound": res.NotFound})
}
