package relayproto

// Status is the body of GET / on the relay.
type Status struct {
	Status           string  `json:"status"`
	ActiveGames      int     `json:"activeGames"`
	ConnectedPlayers int     `json:"connectedPlayers"`
	Uptime           float64 `json:"uptime"`
	Timestamp        string  `json:"timestamp"`
	Version          string  `json:"version"`
}

// Health is the body of GET /health on the relay.
type Health struct {
	Status           string `json:"status"`
	ActiveGames      int    `json:"activeGames"`
	ConnectedPlayers int    `json:"connectedPlayers"`
}

const (
	StatusRunning = "Chess server is running"
	StatusHealthy = "healthy"
)
