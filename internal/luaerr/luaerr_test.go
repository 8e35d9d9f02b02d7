// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package luaerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsAreDistinctAndWrappable(t *testing.T) {
	sentinels := []error{ErrOutOfMemory, ErrStackOverflow, ErrNotResumable, ErrClosed}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "sentinels must not alias each other")
		}
	}

	wrapped := fmt.Errorf("loading chunk: %w", ErrOutOfMemory)
	assert.True(t, errors.Is(wrapped, ErrOutOfMemory))
}
