package ports

// Authenticator exposes the login state consumed by the poller and API client.
type Authenticator interface {
	IsAuthenticated() bool
	Token() string
}
