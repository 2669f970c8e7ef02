package config

// StoreConfig holds resolved Postgres document-store configuration.
type StoreConfig struct {
	DSN             string // Postgres connection string (env-expanded)
	MaxConns        int32  // pgx pool max connections
	MigrationsPath  string // embed.FS sub-path holding SQL migration files
	BatchFlushEvery int    // document-slots per BatchWriter flush (default: 10)
}

// VectorConfig holds resolved Qdrant vector-store configuration.
type VectorConfig struct {
	Endpoint       string // Qdrant gRPC endpoint, host:port
	APIKeyEnv      string // Env var name containing the Qdrant API key, if any
	CollectionName string // Collection holding chunk + document-summary embeddings
	VectorSize     int    // Embedding dimensionality
}
