package session

import (
	"encoding/json"
	"time"

	"github.com/chordline/console/devicesig"
)

// Metadata entry kinds. Unknown kinds are preserved opaque on the wire but
// ignored by this core.
const (
	kindDeviceInfo = "deviceInfo"
	kindRevocation = "revocation"
)

// DeviceInfo is the device signature snapshot stored in session metadata.
type DeviceInfo struct {
	Kind        string            `json:"kind"`
	UserAgent   string            `json:"userAgent"`
	Fingerprint string            `json:"fingerprint"`
	IPAddress   string            `json:"ipAddress"`
	Raw         map[string]string `json:"raw,omitempty"`
}

// Revocation records why and under which observed signature a session was
// terminated.
type Revocation struct {
	Kind     string       `json:"kind"`
	Reason   RevokeReason `json:"reason"`
	At       time.Time    `json:"at"`
	Observed *DeviceInfo  `json:"observed,omitempty"`
}

// Metadata is the structured blob attached to a session: the device info
// captured at creation and, once revoked, the revocation record.
type Metadata struct {
	Device     *DeviceInfo
	Revocation *Revocation
}

func newDeviceInfo(sig devicesig.Signature) *DeviceInfo {
	return &DeviceInfo{
		Kind:        kindDeviceInfo,
		UserAgent:   sig.UserAgent,
		Fingerprint: sig.Fingerprint,
		IPAddress:   sig.IPAddress,
		Raw:         sig.Raw,
	}
}

// MarshalJSON encodes the metadata as an array of tagged entries.
func (m Metadata) MarshalJSON() ([]byte, error) {
	entries := make([]any, 0, 2)
	if m.Device != nil {
		m.Device.Kind = kindDeviceInfo
		entries = append(entries, m.Device)
	}
	if m.Revocation != nil {
		m.Revocation.Kind = kindRevocation
		entries = append(entries, m.Revocation)
	}

	return json.Marshal(entries)
}

// UnmarshalJSON decodes defensively: malformed blobs and unknown entry
// kinds are treated as absent, never as a validation failure. Session
// validation must not be crashable through a corrupt metadata column.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	for _, raw := range entries {
		var tag struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			continue
		}

		switch tag.Kind {
		case kindDeviceInfo:
			device := &DeviceInfo{}
			if err := json.Unmarshal(raw, device); err == nil {
				m.Device = device
			}
		case kindRevocation:
			revocation := &Revocation{}
			if err := json.Unmarshal(raw, revocation); err == nil {
				m.Revocation = revocation
			}
		}
	}

	return nil
}
