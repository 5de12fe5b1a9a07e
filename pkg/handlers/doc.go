// Package handlers provides ready-made pipeline handlers: a request guard,
// fixed responses, path mounts, file and object serving, a notification
// endpoint, JSON endpoints, an OAuth callback receiver and a net/http bridge.
//
// Handlers that match on a path compare the relative path they receive, which
// is the request target with any enclosing Mount prefix removed. Unless noted
// otherwise, path comparison ignores case and the query string.
package handlers
