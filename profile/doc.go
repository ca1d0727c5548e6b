// Package profile fetches the backend's view of the current user.
//
// The client sends a single GET with no parameters; identity comes from the
// Authorization header that the supplied *http.Client attaches (see
// goSession.NewHTTPClient). The response body must satisfy the same user
// schema as persisted state before it is returned.
package profile
