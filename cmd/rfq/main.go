package main

import (
	"os"

	"github.com/wonny/rfqnorm/backend/cmd/rfq/commands"
)

// main is the entry point for the RFQ normalizer CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/rfq [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
