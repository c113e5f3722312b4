package pubfront

import "embed"

// EmbeddedAssets contains static assets shipped with the binary:
// comments.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
