// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package goid reports the identity of the calling goroutine.
//
// The identifier is parsed from the header line of [runtime.Stack], which
// has the stable form "goroutine 123 [running]:". It is used as an owner key
// by reentrant locks and must not be used for anything else.
package goid

import "runtime"

const prefix = "goroutine "

// Get returns the current goroutine's id. Ids are positive; 0 means the
// header could not be parsed.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) int64 {
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	b = b[len(prefix):]
	var id int64
	for i := 0; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		id = id*10 + int64(b[i]-'0')
	}
	return id
}
