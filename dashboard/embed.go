// Package dashboard embeds the heart-rate display page.
//
// The page reads its rendering parameters from /api/display and follows the
// reading stream at /api/sse. It draws the bpm while a heart rate is being
// reported and a loading circle with a hint otherwise.
package dashboard

import "embed"

// Assets holds assets/index.html. The server substitutes {{.Title}}.
//
//go:embed assets/*
var Assets embed.FS
