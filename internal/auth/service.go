package auth

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned for both unknown usernames and wrong
	// passwords. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownUser is how a CredentialStore signals an absent username.
	// It never escapes Authenticate.
	ErrUnknownUser = errors.New("unknown user")
)

// Credential is the stored record the service verifies against.
type Credential struct {
	Username     string
	PasswordHash string
	Role         Role
}

// CredentialStore is the read path into the user store.
type CredentialStore interface {
	Lookup(username string) (*Credential, error)
}

// IssuedToken is the successful outcome of authentication.
type IssuedToken struct {
	Token    string
	Username string
	Role     Role
}

// Service authenticates username/password pairs and issues tokens.
type Service struct {
	store  CredentialStore
	codec  *TokenCodec
	logger *zap.Logger
}

// NewService wires the authentication service.
func NewService(store CredentialStore, codec *TokenCodec, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, codec: codec, logger: logger}
}

// Authenticate verifies the credentials and issues a token on success.
// Unknown-username and wrong-password failures are indistinguishable: both
// return ErrInvalidCredentials, and both run exactly one bcrypt comparison
// so the failure paths take comparable time.
func (s *Service) Authenticate(username, password string) (*IssuedToken, error) {
	cred, err := s.store.Lookup(username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			verifyReference(password)
			s.logger.Info("login failed", zap.String("username", username))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}

	if !VerifyPassword(password, cred.PasswordHash) {
		s.logger.Info("login failed", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	token, err := s.codec.Issue(cred.Username, cred.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("login succeeded",
		zap.String("username", cred.Username),
		zap.String("role", string(cred.Role)))

	return &IssuedToken{Token: token, Username: cred.Username, Role: cred.Role}, nil
}
