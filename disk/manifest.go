package disk

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// manifestVersion is bumped whenever the on-disk schema changes
// incompatibly. A mismatched or undecodable manifest is treated as
// absent: the tier starts empty rather than deleting existing files,
// leaving reconciliation to VerifyIntegrity.
const manifestVersion = 1

// FileMetadata is one manifest record: everything needed to serve a get
// without touching the file, plus what verify_integrity cross-checks
// against the file on disk.
type FileMetadata struct {
	Key          string    `json:"key"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	AccessCount  int64     `json:"access_count"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// manifest is the serialised document living at <cache_root>/<name>/manifest.
type manifest struct {
	Version    int                     `json:"version"`
	Records    map[string]FileMetadata `json:"records"`
	TotalBytes int64                   `json:"total_bytes"`
}

func newManifest() *manifest {
	return &manifest{Version: manifestVersion, Records: make(map[string]FileMetadata)}
}

func (m *manifest) encode() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(m)
}

func decodeManifest(b []byte) (*manifest, error) {
	var m manifest
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Version != manifestVersion {
		return nil, errVersionMismatch
	}
	if m.Records == nil {
		m.Records = make(map[string]FileMetadata)
	}
	return &m, nil
}

var errVersionMismatch = manifestVersionError{}

type manifestVersionError struct{}

func (manifestVersionError) Error() string { return "disk: manifest version mismatch" }
