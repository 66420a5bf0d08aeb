/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package config contains the configuration of the graph engine.

The configuration is a flat map which is loaded from a JSON file. A missing
file is created with the default values. Every value can be overwritten with
an environment variable (e.g. ELIASGRAPH_LOCATION_DATASTORE).
*/
package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/fileutil"
	"github.com/krotik/eliasgraph/query/budget"
)

// Global variables
// ================

/*
DefaultConfigFile is the default config file which will be used to configure the engine
*/
var DefaultConfigFile = "eliasgraph.config.json"

/*
EnvPrefix is the prefix of environment variables which overwrite config values
*/
const EnvPrefix = "ELIASGRAPH"

/*
Known configuration options
*/
const (
	MemoryOnlyStorage  = "MemoryOnlyStorage"
	LocationDatastore  = "LocationDatastore"
	LockFile           = "LockFile"
	WALSegmentSize     = "WALSegmentSize"
	CheckpointInterval = "CheckpointInterval"
	GCInterval         = "GCInterval"
	TransactionTimeout = "TransactionTimeout"
	ReaperInterval     = "ReaperInterval"
	DefaultIsolation   = "DefaultIsolation"
	DefaultBudget      = "DefaultBudget"
	PlanCacheSize      = "PlanCacheSize"
	BlockCacheSize     = "BlockCacheSize"
	BudgetPresets      = "BudgetPresets"
)

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	MemoryOnlyStorage:  false,
	LocationDatastore:  "db",
	LockFile:           "eliasgraph.lck",
	WALSegmentSize:     16 * 1024 * 1024,
	CheckpointInterval: 1000,
	GCInterval:         32,
	TransactionTimeout: "0s",
	ReaperInterval:     "10s",
	DefaultIsolation:   "RepeatableRead",
	DefaultBudget:      "moderate",
	PlanCacheSize:      1000,
	BlockCacheSize:     64,
	BudgetPresets:      map[string]interface{}{},
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options. Environment variables are applied afterwards.
*/
func LoadConfigFile(configfile string) error {
	var err error

	defaults := make(map[string]interface{})
	for k, v := range DefaultConfig {
		defaults[k] = v
	}

	if Config, err = fileutil.LoadConfig(configfile, defaults); err == nil {
		err = ApplyEnvironment()
	}

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

/*
environment holds config values which were given as environment variables.
Empty values are not applied.
*/
type environment struct {
	MemoryOnlyStorage  string `envconfig:"MEMORY_ONLY_STORAGE"`
	LocationDatastore  string `envconfig:"LOCATION_DATASTORE"`
	LockFile           string `envconfig:"LOCK_FILE"`
	WALSegmentSize     string `envconfig:"WAL_SEGMENT_SIZE"`
	CheckpointInterval string `envconfig:"CHECKPOINT_INTERVAL"`
	GCInterval         string `envconfig:"GC_INTERVAL"`
	TransactionTimeout string `envconfig:"TRANSACTION_TIMEOUT"`
	ReaperInterval     string `envconfig:"REAPER_INTERVAL"`
	DefaultIsolation   string `envconfig:"DEFAULT_ISOLATION"`
	DefaultBudget      string `envconfig:"DEFAULT_BUDGET"`
	PlanCacheSize      string `envconfig:"PLAN_CACHE_SIZE"`
	BlockCacheSize     string `envconfig:"BLOCK_CACHE_SIZE"`
}

/*
ApplyEnvironment overwrites config values with the values of environment
variables.
*/
func ApplyEnvironment() error {
	var env environment

	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if Config == nil {
		LoadDefaultConfig()
	}

	for k, v := range map[string]string{
		MemoryOnlyStorage:  env.MemoryOnlyStorage,
		LocationDatastore:  env.LocationDatastore,
		LockFile:           env.LockFile,
		WALSegmentSize:     env.WALSegmentSize,
		CheckpointInterval: env.CheckpointInterval,
		GCInterval:         env.GCInterval,
		TransactionTimeout: env.TransactionTimeout,
		ReaperInterval:     env.ReaperInterval,
		DefaultIsolation:   env.DefaultIsolation,
		DefaultBudget:      env.DefaultBudget,
		PlanCacheSize:      env.PlanCacheSize,
		BlockCacheSize:     env.BlockCacheSize,
	} {
		if v != "" {
			Config[k] = v
		}
	}

	return nil
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	val := fmt.Sprint(Config[key])

	ret, err := strconv.ParseInt(val, 10, 64)

	if err != nil {

		// JSON numbers are read as floats

		if f, ferr := strconv.ParseFloat(val, 64); ferr == nil && f == float64(int64(f)) {
			return int64(f)
		}
	}

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Duration reads a config value as a duration (e.g. 10s).
*/
func Duration(key string) time.Duration {
	ret, err := time.ParseDuration(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Budgets decodes the configured budget presets. Each preset is a map with the
keys node_visits, edge_visits, rows and timeout. The name of a preset is its
key in the BudgetPresets map. Presets are returned in name order.
*/
func Budgets() ([]budget.Spec, error) {
	var ret []budget.Spec

	presets, ok := Config[BudgetPresets].(map[string]interface{})
	if !ok {
		if Config[BudgetPresets] == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("Config key %v must be a map", BudgetPresets)
	}

	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		var spec budget.Spec

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &spec,
		})

		if err == nil {
			err = dec.Decode(presets[name])
		}

		if err != nil {
			return nil, fmt.Errorf("Invalid budget preset %v: %v", name, err)
		}

		spec.Name = name
		ret = append(ret, spec)
	}

	return ret, nil
}
