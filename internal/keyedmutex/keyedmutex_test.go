package keyedmutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializesSameKey(t *testing.T) {
	km := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("P1")
			counter++
			km.Unlock("P1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestDifferentKeysIndependent(t *testing.T) {
	km := New()

	km.Lock("P1")
	done := make(chan struct{})
	go func() {
		// Must not block on P1's lock.
		km.Lock("P2")
		km.Unlock("P2")
		close(done)
	}()
	<-done
	km.Unlock("P1")
}

func TestUnlockUnheldKeyPanics(t *testing.T) {
	km := New()
	assert.Panics(t, func() {
		km.Unlock("never-locked")
	})
}
