package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound ledger requests.
const AccessTokenHeaderName = "access_token"

// DefaultCurrency is used when a payment request does not name one.
const DefaultCurrency = "usd"
