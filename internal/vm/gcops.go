// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/probeum/lucore/internal/value"

// collectGarbage implements collectgarbage()'s option dispatch (§4.2,
// §9 Open Question 2 for "generational"/"incremental" mode switches).
func (vm *Interpreter) collectGarbage(opt string, arg int) value.Value {
	switch opt {
	case "", "collect":
		vm.h.Collect()
		return value.Int(0)
	case "stop":
		vm.h.Inhibit()
		return value.Int(0)
	case "restart":
		vm.h.Allow()
		return value.Int(0)
	case "step":
		vm.h.StepAuto()
		return value.Bool(false)
	case "count":
		bytes := vm.h.Count()
		return value.Float(float64(bytes) / 1024.0)
	case "isrunning":
		return value.Bool(!vm.h.Inhibited())
	case "incremental", "generational":
		vm.h.SetGenerational(opt == "generational")
		return value.Obj(vm.h.InternStr(opt))
	default:
		return value.Int(0)
	}
}
