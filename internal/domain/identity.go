package domain

// Device is a durable client identity created on the first hello of a
// connection. Devices are never destroyed; the public key is opaque to the
// server and only relayed to peers for end-to-end encryption.
type Device struct {
	DeviceID   string `json:"deviceId"`
	PublicKey  string `json:"publicKey"`
	CreatedAt  int64  `json:"createdAt"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

// Alias is a claimed network identity. At most one live session holds an
// alias at a time; ActiveSessionID is empty while the alias is idle. The
// reclaim nonce rotates on every successful claim and is required to take an
// idle alias from a different device.
type Alias struct {
	Name            string `json:"alias"`
	CurrentDeviceID string `json:"currentDeviceId"`
	ActiveSessionID string `json:"activeSessionId,omitempty"`
	LastIP          string `json:"lastIp,omitempty"`
	ClaimedAt       int64  `json:"claimedAt"`
	ReclaimNonce    string `json:"reclaimNonce"`
}

// Live reports whether a session currently holds the alias.
func (a *Alias) Live() bool {
	return a.ActiveSessionID != ""
}

// Session is one gateway connection. The row outlives the connection;
// DisconnectedAt stays zero while the session is live.
type Session struct {
	SessionID      string `json:"sessionId"`
	DeviceID       string `json:"deviceId"`
	Alias          string `json:"alias,omitempty"`
	IP             string `json:"ip,omitempty"`
	ConnectedAt    int64  `json:"connectedAt"`
	DisconnectedAt int64  `json:"disconnectedAt,omitempty"`
	ResumeToken    string `json:"resumeToken,omitempty"`
}
