package client

// ControlPlaneConfig configures the local HTTP API of the daemon.
type ControlPlaneConfig struct {
	Addr      string // Address to bind, e.g. "127.0.0.1:7938"
	AuthToken string // Bearer token local apps must send
}
