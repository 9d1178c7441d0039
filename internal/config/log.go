package config

import "github.com/walunjakarsachinedu/tab-navigator/internal/logging"

var configLog = logging.ForComponent(logging.CompConfig)
