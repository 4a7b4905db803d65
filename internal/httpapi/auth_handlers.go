package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"clipstream.dev/internal/audit"
	"clipstream.dev/internal/auth"
	"clipstream.dev/internal/obs"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         auth.Profile `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.sessions.Register(r.Context(), auth.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", zap.String("username", profile.Username))
	writeData(w, http.StatusCreated, profile, "user registered successfully")
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username or email and password are required")
		return
	}
	profile, pair, err := a.sessions.Login(r.Context(), identifier, req.Password)
	if err != nil {
		obs.ObserveLogin("rejected")
		writeServiceError(w, err)
		return
	}
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", zap.String("user_id", profile.ID))
	a.setAuthCookies(w, pair)
	writeData(w, http.StatusOK, loginResponse{
		User:         profile,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "user logged in successfully")
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		presented = c.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			presented = req.RefreshToken
		}
	}
	profile, pair, err := a.sessions.Refresh(r.Context(), presented)
	if err != nil {
		reuse := errors.Is(err, auth.ErrTokenReused)
		obs.ObserveRefresh("rejected", reuse)
		if reuse {
			_ = audit.LogEvent(r.Context(), "auth.refresh.reuse_detected")
		}
		a.clearAuthCookies(w)
		writeServiceError(w, err)
		return
	}
	obs.ObserveRefresh("ok", false)
	_ = audit.LogEvent(r.Context(), "auth.refresh", zap.String("user_id", profile.ID))
	a.setAuthCookies(w, pair)
	writeData(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "access token refreshed")
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.sessions.Logout(r.Context(), principal.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout")
	a.clearAuthCookies(w)
	writeData(w, http.StatusOK, nil, "user logged out successfully")
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeData(w, http.StatusOK, principal, "current user fetched successfully")
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sessions.ChangePassword(r.Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.changed")
	writeData(w, http.StatusOK, nil, "password changed successfully")
}

func (a *API) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.sessions.UpdateProfile(r.Context(), principal.ID, req.FullName, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile, "account details updated successfully")
}
