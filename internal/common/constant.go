// Package common contains constants and sentinel errors shared by the
// client and the record store server.
package common

// AccessTokenHeaderName is the gRPC metadata key carrying the session token.
const AccessTokenHeaderName = "access_token"
