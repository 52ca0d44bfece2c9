package web

import (
	"embed"
)

// staticFiles holds the embedded dashboard assets.
//
//go:embed static/*
var staticFiles embed.FS
