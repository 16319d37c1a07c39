package gate

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedBody means the body is not a JSON object.
	ErrMalformedBody = errors.New("sign-up body is not a JSON object")
	// ErrNoEmail means the body has no string email field.
	ErrNoEmail = errors.New("sign-up body has no string email")
)

// ParsedBody is the part of a sign-up body the gate cares about.
type ParsedBody struct {
	Email string
}

// ParseSignUpBody extracts the email from a sign-up body. Any error means the
// request carries no usable email.
func ParseSignUpBody(body []byte) (ParsedBody, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ParsedBody{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if fields == nil {
		return ParsedBody{}, ErrMalformedBody
	}

	raw, ok := fields["email"]
	if !ok || string(raw) == "null" {
		return ParsedBody{}, ErrNoEmail
	}
	var email string
	if err := json.Unmarshal(raw, &email); err != nil {
		return ParsedBody{}, ErrNoEmail
	}
	return ParsedBody{Email: email}, nil
}
