package memengine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func Test_KeyedMutex_SerializesPerKeyAndForgetsReleasedKeys(t *testing.T) {
	// arrange
	km := newKeyedMutex()
	key := uuid.New()
	counter := 0
	var wg sync.WaitGroup

	// act
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := km.Lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, km.size())
}

func Test_KeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock(uuid.New())
	unlockB := km.Lock(uuid.New())

	assert.Equal(t, 2, km.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, km.size())
}
