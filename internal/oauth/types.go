package oauth

// AuthorizeRequest es el input de /authorize, local o externo.
type AuthorizeRequest struct {
	Provider            string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Username            string
	Password            string
}

// LocalAuthorizeRequest es el input del issuer local, ya validado.
type LocalAuthorizeRequest struct {
	Identifier    string
	Password      string
	State         string
	RedirectURI   string
	CodeChallenge string
}

// AuthorizeResult lleva Code (local) o AuthorizationURL (externo).
type AuthorizeResult struct {
	Code             string
	AuthorizationURL string
	State            string
	RedirectURI      string
}

// TokenRequest es el input de /token.
type TokenRequest struct {
	Provider     string
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// RefreshRequest es el input de /refresh.
type RefreshRequest struct {
	GrantType    string
	RefreshToken string
}

// TokenResponse es el envelope OAuth2.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
}

// TokenResult agrega metadata del flujo al envelope.
type TokenResult struct {
	Tokens    TokenResponse
	UserID    string
	Provider  string
	IsNewUser bool
}
