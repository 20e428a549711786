// Package middleware provides HTTP middleware for authentication and rate
// limiting in front of pkg/registryapi's handlers.
//
// # Middleware Components
//
// AuthMiddleware: Bearer-token authentication
//
//	authenticator := middleware.NewAuthenticator(cat, signedIssuer)
//	router.Use(middleware.NewAuthMiddleware(authenticator, false).Handler)
//	// Extracts Bearer token, validates (opaque or signed), adds AuthContext
//
// RateLimitMiddleware: in-process token-bucket rate limiting, the default
// for a single-node deployment.
//
//	router.Use(middleware.NewRateLimitMiddleware().Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting shared across
// replicas, for a multi-node deployment.
//
//	router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
//
// RequireScope / RequireOwner: authorization guards applied per-route.
//
// # Rate Limiting Tiers
//
// Anonymous (IP-keyed): 60 req/min, 10 burst
// Authenticated user: 5000 req/min, 50 burst
package middleware
