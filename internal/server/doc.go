// Package server provides the read-only HTTP surface of a heartboard.
//
// It serves the embedded dashboard at "/", the latest reading at
// "/api/reading", a Server-Sent Events stream at "/api/sse", the rendering
// parameters at "/api/display", and Prometheus metrics at "/metrics".
// Routing uses gorilla/mux; CORS is applied by rs/cors so the API can feed
// displays hosted elsewhere.
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
