// Package transport executes one logical request against the sales API and
// normalizes the outcome.
//
// Success is a Response carrying the status and raw JSON body. Anything else
// is an *Error with the status (0 when no response arrived), the response
// body, and a user-facing message chosen in this order: the server's own
// message, a message describing the transport failure, then DefaultMessage.
package transport
