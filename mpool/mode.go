// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpool

// Mode is the allocation strategy of a [Pool].
type Mode int32

const (
	// ModeDisabled rejects every allocation.
	ModeDisabled Mode = iota
	// ModePassThrough allocates each block from the Go heap.
	ModePassThrough
	// ModeDynamic grows on demand and keeps released blocks for reuse.
	ModeDynamic
	// ModeFixed carves a pre-allocated region into a fixed number of blocks.
	ModeFixed
	// ModeExternal carves a caller-owned buffer into blocks.
	ModeExternal
)

// SelectMode returns the mode [Pool.Init] picks for the given parameters.
func SelectMode(capacity, blockSize int) Mode {
	switch {
	case blockSize == 0:
		return ModePassThrough
	case capacity == 0:
		return ModeDynamic
	default:
		return ModeFixed
	}
}

// Bounded reports whether the mode has a hard block-count ceiling.
func (m Mode) Bounded() bool {
	return m == ModeFixed || m == ModeExternal
}

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModePassThrough:
		return "passthrough"
	case ModeDynamic:
		return "dynamic"
	case ModeFixed:
		return "fixed"
	case ModeExternal:
		return "external"
	default:
		return "unknown"
	}
}
