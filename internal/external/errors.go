package external

import "errors"

var (
	// ErrUpstreamUnavailable covers transport failures and non-2xx
	// responses from the listing endpoint.
	ErrUpstreamUnavailable = errors.New("p2p listing endpoint unavailable")

	// ErrInvalidResponse covers malformed envelopes, explicit error codes
	// and empty listings arrays.
	ErrInvalidResponse = errors.New("invalid p2p listing response")
)
