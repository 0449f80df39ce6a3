package admin

import (
	"net/http"

	"quoteflow/internal/handlers/common"
	"quoteflow/internal/response"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues a bearer token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	res, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, res)
}

// HandleMe returns the authenticated user.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context(), common.Principal(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, u)
}
