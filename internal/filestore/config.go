package filestore

import "github.com/koustreak/sqlstream/internal/errs"

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to reach the bucket scripts are read from.
type Config struct {
	// Provider is the storage backend. Empty means ProviderMinIO.
	Provider Provider `yaml:"provider"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket holds the SQL scripts.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "scripts",
	}
}

// Enabled reports whether an endpoint was configured at all.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// Validate checks an enabled config.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Provider != "" && c.Provider != ProviderMinIO {
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported filestore provider %q", c.Provider)
	}
	if c.Bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "filestore bucket is required")
	}
	return nil
}
