package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/http/dto"
	"github.com/dropDatabas3/authority/internal/http/helpers"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
)

// UserLookup resuelve un principal por ID.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// PrincipalController expone el principal autenticado y la consulta admin.
type PrincipalController struct {
	users UserLookup
}

func NewPrincipalController(users UserLookup) *PrincipalController {
	return &PrincipalController{users: users}
}

// UserInfo maneja GET /userinfo. Requiere RequireBearer.
func (c *PrincipalController) UserInfo(w http.ResponseWriter, r *http.Request) {
	u := mw.GetPrincipal(r.Context())
	if u == nil {
		apperr.Write(w, r, apperr.InvalidToken(nil))
		return
	}
	provider := ""
	if cl := mw.GetClaims(r.Context()); cl != nil {
		provider = cl.Provider
	}
	helpers.WriteNoStore(w, http.StatusOK, dto.UserInfoResponse{
		Sub:           u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.DisplayName(),
		Username:      u.Username,
		Provider:      provider,
		Roles:         u.RoleNames(),
		Permissions:   u.PermissionNames(),
	})
}

// Get maneja GET /admin/principals/{id}. Requiere users:read.
func (c *PrincipalController) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := c.users.GetByID(r.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			apperr.Write(w, r, apperr.NotFound("principal not found").WithDetail("id", id))
			return
		}
		apperr.Write(w, r, apperr.Internal(err))
		return
	}
	helpers.WriteNoStore(w, http.StatusOK, dto.PrincipalResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Name:          u.Name,
		Active:        u.Active,
		Superuser:     u.Superuser,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		HasPassword:   u.HasPassword(),
		Roles:         u.RoleNames(),
		Permissions:   u.PermissionNames(),
		CreatedAt:     u.CreatedAt,
	})
}
