// Package testutil provides fixtures and goroutine helpers for hgtload tests.
//
// t.Fatal must not be called from goroutines other than the test goroutine;
// concurrent test code returns errors through GoroutineTest instead.
package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// GoroutineTest gathers errors from goroutines and reports them from the
// test goroutine.
//
//	gt := testutil.NewGoroutineTest(t)
//	for range 8 {
//	    gt.Go(func() error { _, err := svc.Tile("N00E010"); return err })
//	}
//	gt.Wait()
type GoroutineTest struct {
	t  testing.TB
	wg sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewGoroutineTest creates a GoroutineTest reporting to t.
func NewGoroutineTest(t testing.TB) *GoroutineTest {
	return &GoroutineTest{t: t}
}

// Go runs fn in a new goroutine.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(); err != nil {
			gt.mu.Lock()
			gt.errs = append(gt.errs, err)
			gt.mu.Unlock()
		}
	}()
}

// Wait blocks until every goroutine returned and fails the test on the
// first collected errors.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()

	gt.mu.Lock()
	defer gt.mu.Unlock()
	if len(gt.errs) == 0 {
		return
	}
	for i, err := range gt.errs {
		if i == 5 {
			gt.t.Errorf("... %d more", len(gt.errs)-i)
			break
		}
		gt.t.Errorf("goroutine error: %v", err)
	}
	gt.t.FailNow()
}

// WithTimeout runs fn and returns its error, or a timeout error when fn has
// not returned after d. fn keeps running in the background on timeout.
func WithTimeout(d time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return fmt.Errorf("still running after %v", d)
	}
}
