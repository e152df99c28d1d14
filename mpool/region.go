// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpool

import "fmt"

// region is the contiguous backing store of a fixed pool.
type region struct {
	buf    []byte
	mapped bool
}

func allocRegion(size int, mapped bool) (region, error) {
	if mapped && mapSupported {
		buf, err := mapRegion(size)
		if err != nil {
			return region{}, fmt.Errorf("%w: map %d bytes: %w", ErrOutOfMemory, size, err)
		}
		return region{buf: buf, mapped: true}, nil
	}
	return heapRegion(size)
}

func heapRegion(size int) (r region, err error) {
	defer func() {
		if recover() != nil {
			r, err = region{}, fmt.Errorf("%w: %d bytes", ErrOutOfMemory, size)
		}
	}()
	return region{buf: make([]byte, size)}, nil
}

func (r *region) free() error {
	buf, mapped := r.buf, r.mapped
	*r = region{}
	if mapped {
		return unmapRegion(buf)
	}
	return nil
}
