package server

import "sync"

// RunningJob is a background task that can be asked to stop and waited on.
type RunningJob struct {
	stop     chan struct{}
	closed   chan struct{}
	stopOnce *sync.Once
}

func (job *RunningJob) RequestStop() {
	job.stopOnce.Do(func() { close(job.stop) })
}

func (job *RunningJob) AwaitStop() {
	<-job.closed
}

// SpawnJob runs start in its own goroutine and shutdown once a stop is
// requested.
func SpawnJob(start func(), shutdown func()) RunningJob {
	stop := make(chan struct{})
	closed := make(chan struct{})
	go func() {
		<-stop
		shutdown()
		close(closed)
	}()
	go start()
	return RunningJob{stop: stop, closed: closed, stopOnce: new(sync.Once)}
}

// CombineJobs stops all jobs together, in order, and waits for each.
func CombineJobs(jobs ...RunningJob) RunningJob {
	start := func() {}
	shutdown := func() {
		for i := range jobs {
			jobs[i].RequestStop()
		}
		for i := range jobs {
			jobs[i].AwaitStop()
		}
	}
	return SpawnJob(start, shutdown)
}
