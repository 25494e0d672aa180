package node

import (
	"meshvpn/application/logging"
	"meshvpn/application/timing"
	nodeConfiguration "meshvpn/infrastructure/PAL/configuration/node"
)

type AppDependencies interface {
	Configuration() *nodeConfiguration.Configuration
	ConfigurationManager() nodeConfiguration.ConfigurationManager
	KeyManager() nodeConfiguration.KeyManager
	ConfigPath() string
	Clock() timing.Clock
	Logger() logging.Logger
	DebugLogger() logging.Logger
}

type Dependencies struct {
	configuration        *nodeConfiguration.Configuration
	configurationManager nodeConfiguration.ConfigurationManager
	keyManager           nodeConfiguration.KeyManager
	configPath           string
	clock                timing.Clock
	logger               logging.Logger
	debugLogger          logging.Logger
}

func NewDependencies(
	configuration *nodeConfiguration.Configuration,
	configurationManager nodeConfiguration.ConfigurationManager,
	keyManager nodeConfiguration.KeyManager,
	configPath string,
	clock timing.Clock,
	logger logging.Logger,
	debugLogger logging.Logger,
) AppDependencies {
	return &Dependencies{
		configuration:        configuration,
		configurationManager: configurationManager,
		keyManager:           keyManager,
		configPath:           configPath,
		clock:                clock,
		logger:               logger,
		debugLogger:          debugLogger,
	}
}

func (d Dependencies) Configuration() *nodeConfiguration.Configuration {
	return d.configuration
}

func (d Dependencies) ConfigurationManager() nodeConfiguration.ConfigurationManager {
	return d.configurationManager
}

func (d Dependencies) KeyManager() nodeConfiguration.KeyManager {
	return d.keyManager
}

func (d Dependencies) ConfigPath() string {
	return d.configPath
}

func (d Dependencies) Clock() timing.Clock {
	return d.clock
}

func (d Dependencies) Logger() logging.Logger {
	return d.logger
}

func (d Dependencies) DebugLogger() logging.Logger {
	return d.debugLogger
}
