package badgerfx

// Entity is a row that knows how to serialize itself and where it lives.
// StorageKey returns the primary key; StorageIndexes returns secondary index
// keys whose values point back at the primary key.
type Entity interface {
	MarshalStorage() ([]byte, error)
	UnmarshalStorage(data []byte) error
	StorageKey() string
	StorageIndexes() []string
}
