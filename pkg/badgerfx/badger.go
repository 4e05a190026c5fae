package badgerfx

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// SeekEnd sorts after any printable key byte. Appended to a prefix it bounds
// reverse iteration over that prefix.
const SeekEnd = byte(0xFF)

// New opens the single BadgerDB instance backing all engine state. Every
// domain repository shares it; keys are namespaced by entity prefix.
func New(config Config, logger *zapLogger) (*badger.DB, error) {
	opts := config.Build().
		WithLogger(logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return db, nil
}
