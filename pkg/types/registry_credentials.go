package types

// RegistryCredentials holds basic auth credentials.
type RegistryCredentials struct {
	Username string `json:"username"` // Registry username.
	Password string `json:"password"` // Registry token or password.
}

// TokenResponse is the body returned by a bearer token endpoint.
//
// Registries answer with either "token" or the OAuth2 style "access_token".
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// BearerToken returns the token, preferring "token" over "access_token".
func (r TokenResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}

	return r.AccessToken
}
