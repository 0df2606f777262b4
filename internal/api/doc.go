// Package api exposes the battle service over HTTP: starting, polling,
// aborting and retrying generations, browsing the public gallery and
// listing the models a client may pick from. Handlers decode and validate
// requests, call the services and map service errors to status codes.
package api
