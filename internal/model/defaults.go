package model

import "time"

// Shared defaults used by the server binary and its components.
const (
	DefaultLeadLogPath  = "leads.csv"
	DefaultRelayPort    = 587
	DefaultRelayTimeout = 10 * time.Second
	DefaultDestination  = "info@gopartnerr.com"
	Brand               = "ZEYATEK"
)
