package ledger

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/common"
)

// CreditsHandler exposes the caller's credit balance.
type CreditsHandler struct {
	Store  Store
	Logger zerolog.Logger
}

type creditsResp struct {
	UserID           string  `json:"userId"`
	Credits          int     `json:"credits"`
	CreditsUpdatedAt *string `json:"creditsUpdatedAt"`
}

// Me serves GET /credits/me. It expects the user id on the context.
func (h CreditsHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return
	}
	profile, err := h.Store.GetProfile(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "profile not found", nil)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", userID).Msg("load profile failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeStorage, "database error", nil)
		return
	}

	resp := creditsResp{UserID: profile.UserID, Credits: profile.Credits}
	if profile.CreditsUpdatedAt != nil {
		day := profile.CreditsUpdatedAt.UTC().Format("2006-01-02")
		resp.CreditsUpdatedAt = &day
	}
	common.JSON(w, http.StatusOK, resp)
}
