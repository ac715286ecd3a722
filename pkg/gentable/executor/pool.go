/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package executor

import "context"

// Pool is a process-wide semaphore bounding the number of outstanding
// provider calls across every row executor, so a large batch add/regen
// cannot stampede upstream APIs.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a Pool admitting at most size concurrent callers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire. Must be called exactly once
// per successful Acquire, typically via defer.
func (p *Pool) Release() {
	<-p.slots
}
