// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that request
// timeouts can be tested without sleeping.
//
// Production code holds a Clock field set to Real(). Tests set it to
// Fake(), wait for the code under test to arm its timer, then move
// time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	conn := ipc.NewConn(pipe, ipc.WithClock(fake), ipc.WithRequestTimeout(time.Second))
//	go conn.Version(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
