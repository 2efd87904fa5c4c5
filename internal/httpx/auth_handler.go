package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/analytics"
	"github.com/farmdirect/marketplace/internal/authn"
	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/token"
)

type AuthHandler struct {
	Users      *identity.Service
	Challenges *authn.Service
	Issuer     *token.Issuer
	Analytics  *analytics.Recorder
	Log        *logrus.Logger
	Secure     bool // secure cookies in production
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Post("/auth/verify-otp", h.verifyOTP)
	r.Post("/auth/resend-otp", h.resendOTP)
	r.Post("/auth/refresh", h.refresh)
	r.Post("/auth/logout", h.logout)
}

type registerReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=customer farmer"`
}

type userResp struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResp(u *identity.User) userResp {
	return userResp{ID: u.ID.String(), Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Register(ctx, identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     identity.Role(req.Role),
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	pair, err := h.Issuer.Issue(u)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.setAccessCookie(w, pair.AccessToken)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   toUserResp(u),
		"tokens": pair,
	})
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// login checks the password and starts the one-time-code challenge. Tokens
// are only issued by verify-otp.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.Verify(ctx, req.Email, req.Password)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if err := h.Challenges.Start(ctx, u); err != nil {
		writeDomainErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "code sent, verify with /auth/verify-otp",
		"user_id": u.ID.String(),
	})
}

type verifyOTPReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	pair, err := h.Challenges.Verify(ctx, u, req.Code)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.setAccessCookie(w, pair.AccessToken)

	if err := h.Analytics.TrackActiveUser(ctx, u.ID.String()); err != nil {
		h.Log.WithError(err).Debug("active user tracking failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   toUserResp(u),
		"tokens": pair,
	})
}

type resendOTPReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if err := h.Challenges.Resend(ctx, u); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "code resent"})
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !decode(w, r, &req) {
		return
	}

	claims, err := h.Issuer.Verify(req.RefreshToken, token.KindRefresh)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.FindByID(ctx, claims.UserID())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	pair, err := h.Issuer.Issue(u)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.setAccessCookie(w, pair.AccessToken)
	writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

// logout clears the cookie; tokens themselves stay valid until expiry (no
// server-side revocation).
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name: "accessToken", Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, Secure: h.Secure, SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) setAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name: "accessToken", Value: accessToken, Path: "/",
		MaxAge: int(time.Hour.Seconds()), HttpOnly: true,
		Secure: h.Secure, SameSite: http.SameSiteLaxMode,
	})
}
