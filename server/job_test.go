package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombineJobsStopsAll(t *testing.T) {
	var mu sync.Mutex
	var stopped []string
	job := func(name string) RunningJob {
		return SpawnJob(func() {}, func() {
			mu.Lock()
			defer mu.Unlock()
			stopped = append(stopped, name)
		})
	}

	combined := CombineJobs(job("a"), job("b"))
	combined.RequestStop()
	// a second request is harmless
	combined.RequestStop()

	done := make(chan struct{})
	go func() {
		combined.AwaitStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not stop")
	}

	assert.ElementsMatch(t, []string{"a", "b"}, stopped)
}
