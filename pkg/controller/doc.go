// Package controller holds the chi middlewares wrapped around every API
// request, in the order the server installs them:
//
//	WithLogger   request id, request scoped logger, panic recovery, access log
//	WithCORS     origin allow-list and preflight answers
//	WithMetrics  request duration histogram keyed by route pattern
//
// Pprof mounts the runtime profiles.
package controller
