/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lsmenv

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/lsmenv/api"
)

// NewBusyBackOff returns the back-off policy used by LockWait when the
// caller passes nil: exponential from 100µs, capped at 10ms between tries.
func NewBusyBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Microsecond
	b.MaxInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// RetryBusy calls op until it returns something other than api.ErrBusy, b
// gives up or ctx is done. Errors other than api.ErrBusy stop the retry
// immediately and are returned as they are.
func RetryBusy(ctx context.Context, op func() error, b backoff.BackOff) error {
	if b == nil {
		b = NewBusyBackOff()
	}
	return backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, api.ErrBusy) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

// LockWait takes slot in mode on f, retrying while the slot is busy.
func LockWait(ctx context.Context, f api.File, slot int, mode api.LockMode, b backoff.BackOff) error {
	return RetryBusy(ctx, func() error {
		return f.Lock(slot, mode)
	}, b)
}
