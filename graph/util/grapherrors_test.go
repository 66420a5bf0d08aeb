/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestGraphError(t *testing.T) {

	err := NewGraphError(ErrConflict, "node 5", nil)

	if err.Error() != "GraphError: Transaction conflict (node 5)" {
		t.Error("Unexpected result:", err)
		return
	}

	if !IsConflict(err) || IsNotFound(err) {
		t.Error("Unexpected type checks:", err)
		return
	}

	wrapped := fmt.Errorf("commit: %w", err)

	if !IsConflict(wrapped) {
		t.Error("Wrapped error should still be a conflict:", wrapped)
		return
	}

	err = NewGraphError(ErrIO, "", io.ErrUnexpectedEOF)

	if err.Error() != "GraphError: IO error: unexpected EOF" {
		t.Error("Unexpected result:", err)
		return
	}

	if !errors.Is(err, ErrIO) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Type and cause should both be visible:", err)
		return
	}

	var ge *GraphError

	if !errors.As(wrapped, &ge) || ge.Detail != "node 5" {
		t.Error("Unexpected result:", ge)
		return
	}
}
