// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build ecpprog_transport_debug
// +build ecpprog_transport_debug

package transport

import "log"

// logf is enabled when the build tag ecpprog_transport_debug is
// specified, to trace raw MPSSE command bytes during development.
func logf(format string, v ...interface{}) {
	log.Printf(format, v...)
}
