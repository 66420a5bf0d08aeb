/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"os"
	"testing"
	"time"
)

const testconf = "testconfig"

func TestConfig(t *testing.T) {

	Config = nil

	os.WriteFile(testconf, []byte(`{
    "MemoryOnlyStorage": true,
    "PlanCacheSize": 50,
    "BudgetPresets": {
        "tiny": {
            "node_visits": 10,
            "timeout": "50ms"
        }
    }
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Str(MemoryOnlyStorage); res != "true" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Bool(MemoryOnlyStorage); !res {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(PlanCacheSize); res != 50 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(BlockCacheSize); fmt.Sprint(res) != fmt.Sprint(DefaultConfig[BlockCacheSize]) {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Duration(ReaperInterval); res != 10*time.Second {
		t.Error("Unexpected result:", res)
		return
	}

	budgets, err := Budgets()
	if err != nil {
		t.Error(err)
		return
	}

	if res := fmt.Sprint(budgets); res != "[Budget tiny (nodes: 10 edges: - rows: - time: 50ms)]" {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Str(MemoryOnlyStorage); res != "false" {
		t.Error("Unexpected result:", res)
		return
	}

	if budgets, err := Budgets(); err != nil || len(budgets) != 0 {
		t.Error("Unexpected result:", budgets, err)
		return
	}

	Config[BudgetPresets] = map[string]interface{}{
		"bad": map[string]interface{}{"nodes": 1},
	}

	if _, err := Budgets(); err == nil {
		t.Error("Unknown keys should not be accepted")
		return
	}

	Config[BudgetPresets] = "x"

	if _, err := Budgets(); err == nil || err.Error() != "Config key BudgetPresets must be a map" {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestEnvironment(t *testing.T) {

	LoadDefaultConfig()

	t.Setenv("ELIASGRAPH_LOCATION_DATASTORE", "/tmp/graph")
	t.Setenv("ELIASGRAPH_PLAN_CACHE_SIZE", "7")

	if err := ApplyEnvironment(); err != nil {
		t.Error(err)
		return
	}

	if res := Str(LocationDatastore); res != "/tmp/graph" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(PlanCacheSize); res != 7 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Str(LockFile); res != "eliasgraph.lck" {
		t.Error("Unexpected result:", res)
		return
	}
}
