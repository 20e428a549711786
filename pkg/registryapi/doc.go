// Package registryapi implements the registry's public HTTP surface:
// package/release/tag/download/publish, search, alias resolution,
// registry config/health/stats, and local auth (register/login/logout/me).
//
// Server wires pkg/catalog (metadata), pkg/blobstore (archive bytes),
// pkg/middleware (auth and rate limiting), and pkg/discovery (the external
// discovery proxy) behind a single *mux.Router, with each feature area
// registering its own routes through the same Server+RouteRegistrar shape.
package registryapi
