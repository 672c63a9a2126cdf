package constants

import "time"

const (
	// Environment names
	EnvironmentDev  = "dev"
	EnvironmentProd = "prod"

	// Default listen address. The API is unauthenticated, so it stays on loopback unless configured.
	DefaultHost = "127.0.0.1"
	DefaultPort = "48399"

	DefaultHubDirName   = ".kitsune-hub"
	ConfigName          = "hub"
	InstallersDirName   = "installers"
	LogsDirName         = "logs"
	DefaultPollInterval = 2 * time.Second
)
