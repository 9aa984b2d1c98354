package core

import "strings"

// Negotiation is the result of reading an Authorization header.
// Scheme is always set, also on failure: it names the scheme to challenge for.
type Negotiation struct {
	Scheme  Scheme
	Payload string
}

// Negotiate splits the raw Authorization header into scheme and payload and
// checks it against the scheme the endpoint wants.
//
// fallback is the scheme to challenge for when the client sent nothing usable;
// it only matters when desired is SchemeAny, otherwise desired is used.
func Negotiate(header string, desired, fallback Scheme) (Negotiation, error) {
	desired.mustBeKnown()
	if desired != SchemeAny {
		fallback = desired
	}
	if fallback != SchemeBasic && fallback != SchemeBearer {
		panic("core: fallback scheme must be Basic or Bearer")
	}

	if header == "" {
		return Negotiation{Scheme: fallback}, ErrNoAuthInfo
	}

	name, payload, ok := strings.Cut(header, " ")
	if !ok {
		return Negotiation{Scheme: fallback}, ErrInvalidRequest
	}

	var used Scheme
	switch name {
	case "Basic":
		used = SchemeBasic
	case "Bearer":
		used = SchemeBearer
	default:
		// A scheme we don't speak, while the endpoint insists on one, is
		// reported as the wrong scheme so the client is told which to use.
		if desired != SchemeAny {
			return Negotiation{Scheme: desired}, ErrWrongScheme
		}
		return Negotiation{Scheme: fallback}, ErrInvalidRequest
	}

	if desired != SchemeAny && used != desired {
		return Negotiation{Scheme: desired}, ErrWrongScheme
	}
	return Negotiation{Scheme: used, Payload: payload}, nil
}
