// Package static serves the registry's web UI: the SPA's index document for
// client-routed paths, and versioned asset files (CSS, JS, images, wasm)
// from a filesystem root. Registers routes through the same
// mux.Router-based RegisterRoutes shape the rest of the API surface uses.
package static
