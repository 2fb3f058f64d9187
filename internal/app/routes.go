package app

// registerRoutes sets up all HTTP handlers for the relay.
func (a *App) registerRoutes() {
	// Robot protocol: GET probe, POST frame
	a.Mux.HandleFunc("/", a.handleRobot)

	// Telemetry history and live feed
	a.Mux.HandleFunc("/api/latest", a.handleLatest)
	a.Mux.HandleFunc("/api/history", a.handleHistory)
	a.Mux.HandleFunc("/ws", a.hub.handleWS)
}
