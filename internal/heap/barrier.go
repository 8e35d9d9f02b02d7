// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import "github.com/probeum/lucore/internal/value"

// WriteBarrierBackward restores the tri-color invariant for a mutation on a
// table (§4.2): if obj is already black and v refers to a white object,
// mark v gray immediately rather than re-scanning obj later.
func (h *Heap) WriteBarrierBackward(obj Object, v value.Value) {
	hdr := obj.header()
	if hdr.color != Black {
		return
	}
	if v.Kind() != value.KindObject {
		return
	}
	target, ok := v.AsObject().(Object)
	if !ok {
		return
	}
	thdr := target.header()
	if thdr.color == White {
		thdr.color = Gray
		h.gray = append(h.gray, target)
	}
}

// WriteBarrierForward restores the tri-color invariant for a mutation on a
// closure or userdata (§4.2): re-mark obj itself gray and re-push it for
// propagation, so its fields are rescanned from scratch.
func (h *Heap) WriteBarrierForward(obj Object) {
	hdr := obj.header()
	if hdr.color == Black {
		hdr.color = Gray
		h.gray = append(h.gray, obj)
	}
}
