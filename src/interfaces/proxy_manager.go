package interfaces

// -----------------------------------------------------------------------------
// IProxyManager defines the contract for managing and rotating proxies.
// -----------------------------------------------------------------------------

type IProxyManager interface {

	// GetCurrentProxy returns the currently selected proxy URL (or empty if none).
	GetCurrentProxy() (string, error)

	// NextProxy returns a proxy for a new long-lived consumer and advances.
	NextProxy() string

	// RotateProxy switches to the next available proxy.
	RotateProxy()

	// HasProxies returns true if there are proxies configured.
	HasProxies() bool

	// GetUserAgent returns the User-Agent string to present.
	GetUserAgent() string
}
