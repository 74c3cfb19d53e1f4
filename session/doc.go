// Package session holds the bearer token for the signed-in user.
//
// The Store is read by the transport when each request is built, so a token
// set or cleared now applies to the next request only. Token claims are
// decoded without signature verification: the server verifies the token,
// the client only needs the principal, dealer, roles and expiry it carries.
// Tokens that are not JWTs are still sent, with no Identity.
package session
