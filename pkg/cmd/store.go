// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"fmt"
	"strings"

	"github.com/planstudio/flowhistory/pkg/store"
	"github.com/planstudio/flowhistory/pkg/store/file"
	"github.com/planstudio/flowhistory/pkg/store/memory"
)

var supportedStoreProviders = []string{"file", "memory"}

func NewStore(databaseURL string) store.ExecutionStore {
	provider := parseStoreProvider(databaseURL)

	switch provider {
	case "memory":
		return memory.NewStore()
	default:
		fileStore, err := file.NewStore(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to open execution store at %s: %w", databaseURL, err))
		}

		return fileStore
	}
}

func parseStoreProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedStoreProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
