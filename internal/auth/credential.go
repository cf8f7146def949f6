package auth

const (
	SchemeBasic  = "basic"
	SchemeBearer = "bearer"
)

// Credential is what a caller presents to be authenticated.
type Credential interface {
	Scheme() string
}

// UsernamePassword is the only credential the service verifies. Password is
// a GitLab personal access token; callers may clear it once Authenticate
// returns.
type UsernamePassword struct {
	Username string
	Password []byte
}

func (UsernamePassword) Scheme() string {
	return SchemeBasic
}

// BearerToken carries a bare token. The service does not accept it.
type BearerToken struct {
	Token string
}

func (BearerToken) Scheme() string {
	return SchemeBearer
}

// Zero overwrites the password buffer.
func (c *UsernamePassword) Zero() {
	clear(c.Password)
}
