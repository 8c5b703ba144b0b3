/**
 * Copyright 2026 The Meltpond STM Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Known load scenarios.
const (
	ScenarioCounter  = "counter"
	ScenarioTransfer = "transfer"
	ScenarioPingPong = "pingpong"
)

// LoadConfig defines the workload settings for the stmload driver.
type LoadConfig struct {
	// Scenario selects the workload: counter, transfer or pingpong.
	Scenario string `yaml:"scenario"`

	// Workers is the number of goroutines running transactions.
	Workers int `yaml:"workers"`

	// Iterations is the number of transactions each worker commits. Ignored
	// when DurationMs is set.
	Iterations int `yaml:"iterations"`

	// Accounts is the number of TVars the transfer scenario shuffles money
	// between.
	Accounts int `yaml:"accounts"`

	// DurationMs, when non-zero, runs the workload for a wall-clock window
	// instead of a fixed iteration count.
	DurationMs int `yaml:"durationMs"`

	// RetryTimeoutMs bounds blocked retries in the pingpong scenario.
	// Zero means wait indefinitely.
	RetryTimeoutMs int `yaml:"retryTimeoutMs"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"logLevel"`
}

// NewDefaultLoadConfig returns a runnable default configuration.
func NewDefaultLoadConfig() *LoadConfig {
	return &LoadConfig{
		Scenario:       ScenarioCounter,
		Workers:        8,
		Iterations:     10000,
		Accounts:       16,
		RetryTimeoutMs: 1000,
		LogLevel:       "info",
	}
}

// Validate validates a LoadConfig and returns an error if it's invalid.
func (conf *LoadConfig) Validate() error {
	switch conf.Scenario {
	case ScenarioCounter, ScenarioTransfer, ScenarioPingPong:
	default:
		return NewConfigError(fmt.Sprintf("unknown scenario %q", conf.Scenario))
	}
	if conf.Workers <= 0 {
		return NewConfigError("workers must be positive")
	}
	if conf.Iterations <= 0 && conf.DurationMs <= 0 {
		return NewConfigError("either iterations or durationMs must be positive")
	}
	if conf.Scenario == ScenarioTransfer && conf.Accounts < 2 {
		return NewConfigError("transfer needs at least two accounts")
	}
	return nil
}

// LoadFromFile loads the config from the file. It assumes that config
// already has the defaults. In the case of an error, it leaves the config
// untouched.
func (conf *LoadConfig) LoadFromFile(path string) {
	log.Info(fmt.Sprintf("common::config::LoadFromFile; loading config from file %s", path))
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error(fmt.Sprintf("common::config::LoadFromFile; error reading config from file %s, error %s", path, err))
		return
	}
	fconf := LoadConfig{}
	err = yaml.Unmarshal(data, &fconf)
	if err != nil {
		log.Error(fmt.Sprintf("common::config::LoadFromFile; error unmarshalling config from file %s, error %s", path, err))
		return
	}

	log.WithFields(log.Fields{"config": fconf}).Debug("common::config::LoadFromFile; read contents from the file")

	if fconf.Scenario != "" {
		conf.Scenario = fconf.Scenario
	}
	if fconf.Workers != 0 {
		conf.Workers = fconf.Workers
	}
	if fconf.Iterations != 0 {
		conf.Iterations = fconf.Iterations
	}
	if fconf.Accounts != 0 {
		conf.Accounts = fconf.Accounts
	}
	if fconf.DurationMs != 0 {
		conf.DurationMs = fconf.DurationMs
	}
	if fconf.RetryTimeoutMs != 0 {
		conf.RetryTimeoutMs = fconf.RetryTimeoutMs
	}
	if fconf.LogLevel != "" {
		conf.LogLevel = fconf.LogLevel
	}
}
