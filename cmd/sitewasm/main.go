//go:build js && wasm

// Command sitewasm is the page client. Build it with
//
//	GOOS=js GOARCH=wasm go build -o static/sitewasm.wasm ./cmd/sitewasm
//
// and serve wasm_exec.js from the Go distribution next to it.
package main

import (
	"context"
	"os"

	"github.com/conneroisu/sitekit/internal/browser"
	"github.com/conneroisu/sitekit/internal/logging"
)

func main() {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LevelWarn,
		Output:    os.Stderr,
		Component: "sitewasm",
	})

	page, err := browser.Load(logger)
	if err != nil {
		logger.Error(context.Background(), err, "Failed to read page configuration")
		return
	}
	page.Bind(context.Background())

	// The handlers live as long as the page.
	select {}
}
