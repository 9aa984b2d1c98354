package core

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// BasicCredentials is the decoded payload of a Basic Authorization header.
type BasicCredentials struct {
	Username string
	Password string
}

// DecodeBasic decodes base64(username ":" password).
func DecodeBasic(payload string) (BasicCredentials, error) {
	if payload == "" {
		return BasicCredentials{}, ErrInvalidRequest
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return BasicCredentials{}, ErrInvalidRequest
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return BasicCredentials{}, ErrInvalidRequest
	}
	return BasicCredentials{Username: username, Password: password}, nil
}

// DecodeBearer returns the bearer token string unchanged.
func DecodeBearer(payload string) (string, error) {
	if payload == "" {
		return "", ErrInvalidRequest
	}
	return payload, nil
}

var realmEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// BasicChallenge builds the WWW-Authenticate value requesting Basic credentials.
func BasicChallenge(realm string) string {
	return fmt.Sprintf(`Basic realm="%s", charset="UTF-8"`, realmEscaper.Replace(realm))
}

// BearerChallenge builds the WWW-Authenticate value requesting a bearer token.
// The error parameter follows RFC 6750 section 3.1 and is omitted when cause
// does not map to one of its codes.
func BearerChallenge(realm string, cause error) string {
	h := fmt.Sprintf(`Bearer realm="%s"`, realmEscaper.Replace(realm))
	if code := bearerErrorCode(cause); code != "" {
		h += fmt.Sprintf(`, error="%s"`, code)
	}
	return h
}

func bearerErrorCode(cause error) string {
	switch cause {
	case ErrInvalidRequest, ErrWrongScheme:
		return "invalid_request"
	case ErrTokenInvalid, ErrNotExisting:
		return "invalid_token"
	case ErrInsufficientRole:
		return "insufficient_scope"
	default:
		return ""
	}
}
