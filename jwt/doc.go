// Package jwt issues and verifies the access tokens of the connect-share auth
// service. Tokens carry the user id as subject, the authenticated role, the
// session id, and the user's profile metadata.
package jwt
