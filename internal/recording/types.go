// Package recording writes meeting sessions to WAV files and archives them
// to S3-compatible storage.
package recording

import "errors"

// Sentinel errors for recording operations.
var (
	// ErrRecorderClosed is returned when writing to a finalized recorder.
	ErrRecorderClosed = errors.New("recorder is closed")
)

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint        string `json:"endpoint,omitempty"`          // Custom S3 endpoint (empty for AWS)
	Bucket          string `json:"bucket,omitempty"`            // S3 bucket name
	AccessKeyID     string `json:"access_key_id,omitempty"`     // AWS access key ID
	SecretAccessKey string `json:"secret_access_key,omitempty"` // AWS secret access key
}

// IsConfigured returns true if S3 settings are configured.
func (c *S3Config) IsConfigured() bool {
	return c != nil && c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
