/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharge(t *testing.T) {
	m := NewManager(Spec{Name: "test", NodeVisits: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Charge(NodeVisits, 1))
	}

	// Unlimited kinds can be charged at will

	require.NoError(t, m.Charge(EdgeVisits, 1000))

	err := m.Charge(NodeVisits, 1)

	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, NodeVisits, exceeded.Kind)
	assert.Equal(t, int64(3), exceeded.Limit)
	assert.Equal(t, int64(4), exceeded.Used)
	assert.Equal(t, "Budget exceeded: node_visits (limit: 3 used: 4)", err.Error())

	// Once exceeded every charge fails

	assert.Equal(t, err, m.Charge(EdgeVisits, 1))
	assert.Equal(t, exceeded, m.Exceeded())
	assert.Equal(t, int64(1000), m.Used(EdgeVisits))
}

func TestElapsedTime(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		return now
	}

	m := newManagerWithClock(Spec{Timeout: time.Second}, clock)

	now = now.Add(2 * time.Second)

	// The time is only checked at the polling interval

	for i := 0; i < PollInterval-1; i++ {
		require.NoError(t, m.Charge(RowsProduced, 1))
	}

	err := m.Charge(RowsProduced, 1)
	require.Error(t, err)
	assert.Equal(t, ElapsedTime, m.Exceeded().Kind)
	assert.Equal(t, int64(2000), m.Exceeded().Used)
	assert.Equal(t, int64(2000), m.Used(ElapsedTime))
}

func TestDeterminism(t *testing.T) {

	run := func() int64 {
		m := NewManager(Spec{NodeVisits: 100, EdgeVisits: 150})

		var rows int64
		for {
			if m.Charge(NodeVisits, 1) != nil || m.Charge(EdgeVisits, 2) != nil {
				return rows
			}
			rows++
		}
	}

	first := run()
	assert.Equal(t, int64(75), first)
	assert.Equal(t, first, run())
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"moderate", "permissive", "strict", "unlimited"}, Presets())

	spec, err := Preset("Strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, spec)
	assert.Equal(t, "Budget strict (nodes: 10000 edges: 50000 rows: 1000 time: 100ms)", spec.String())
	assert.Equal(t, "Budget unlimited (nodes: - edges: - rows: - time: -)", Unlimited.String())

	_, err = Preset("foo")
	assert.EqualError(t, err, "Unknown budget preset: foo")

	require.NoError(t, RegisterPreset(Spec{Name: "tiny", NodeVisits: 5}))
	defer func() {
		presetsLock.Lock()
		delete(presets, "tiny")
		presetsLock.Unlock()
	}()

	spec, err = Preset("tiny")
	require.NoError(t, err)
	assert.Equal(t, int64(5), spec.Limit(NodeVisits))

	assert.Error(t, RegisterPreset(Spec{}))
	assert.Error(t, RegisterPreset(Spec{Name: "neg", Rows: -1}))
}
