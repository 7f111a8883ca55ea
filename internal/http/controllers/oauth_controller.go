// Package controllers traduce HTTP <-> servicio. No contienen lógica de negocio:
// parsean el body, llaman al servicio y escriben la respuesta o el error.
package controllers

import (
	"net/http"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/http/dto"
	"github.com/dropDatabas3/authority/internal/http/helpers"
	"github.com/dropDatabas3/authority/internal/oauth"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// OAuthController maneja /authorize, /token y /refresh.
type OAuthController struct {
	service oauth.Service
}

func NewOAuthController(s oauth.Service) *OAuthController {
	return &OAuthController{service: s}
}

// Authorize maneja POST /authorize.
func (c *OAuthController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OAuthController.Authorize"))

	var req dto.AuthorizeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		apperr.Write(w, r, err)
		return
	}

	log.Debug("authorize request", logger.Provider(req.Provider), logger.ClientID(req.ClientID))

	res, err := c.service.Authorize(ctx, oauth.AuthorizeRequest{
		Provider:            req.Provider,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Username:            req.Username,
		Password:            req.Password,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	helpers.WriteNoStore(w, http.StatusOK, dto.AuthorizeResponse{
		AuthorizationCode: res.Code,
		AuthorizationURL:  res.AuthorizationURL,
		State:             res.State,
		RedirectURI:       res.RedirectURI,
	})
}

// Token maneja POST /token (JSON o urlencoded).
func (c *OAuthController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.TokenRequest
	if helpers.IsForm(r) {
		f, err := helpers.ReadForm(w, r)
		if err != nil {
			apperr.Write(w, r, err)
			return
		}
		req = dto.TokenRequestFromForm(f)
	} else if err := helpers.ReadJSON(w, r, &req); err != nil {
		apperr.Write(w, r, err)
		return
	}

	res, err := c.service.Exchange(ctx, oauth.TokenRequest{
		Provider:     req.Provider,
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	helpers.WriteNoStore(w, http.StatusOK, tokenResponse(res))
}

// Refresh maneja POST /refresh (JSON o urlencoded).
func (c *OAuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.RefreshRequest
	if helpers.IsForm(r) {
		f, err := helpers.ReadForm(w, r)
		if err != nil {
			apperr.Write(w, r, err)
			return
		}
		req = dto.RefreshRequestFromForm(f)
	} else if err := helpers.ReadJSON(w, r, &req); err != nil {
		apperr.Write(w, r, err)
		return
	}
	if req.GrantType != oauth.GrantRefreshToken {
		apperr.Write(w, r, apperr.UnsupportedGrant("grant_type must be refresh_token"))
		return
	}

	res, err := c.service.Refresh(ctx, oauth.RefreshRequest{
		GrantType:    req.GrantType,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	helpers.WriteNoStore(w, http.StatusOK, tokenResponse(res))
}

func tokenResponse(res *oauth.TokenResult) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
		RefreshToken: res.Tokens.RefreshToken,
		Scope:        res.Tokens.Scope,
	}
}
