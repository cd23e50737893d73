// Package dispatcher provides a priority dispatcher bound to a single affinity goroutine.
//
// Work is posted from any goroutine and runs on the goroutine that owns a platform
// event loop, highest priority first and FIFO within a priority. Blocking calls made on
// the affinity goroutine (Invoke, Await, Wait) keep pumping the loop, so queued jobs and
// native loop messages continue to run while the caller waits.
//
// # Quick Start
//
// Start an affinity goroutine with its own loop and dispatcher:
//
//	thread, err := dispatcher.StartAffinityThread(ctx, dispatcher.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer thread.Stop()
//
//	d := thread.Dispatcher()
//	d.Post(func(ctx context.Context) {
//		// runs on the affinity goroutine
//	}, dispatcher.PriorityNormal)
//
// Or make the calling goroutine the affinity goroutine:
//
//	err := dispatcher.Run(ctx, cfg, func(d *dispatcher.Dispatcher) {
//		// runs on the calling goroutine once the loop is pumping
//	})
//
// # Key Concepts
//
// Priority: ten ordered levels from PrioritySystemIdle to PrioritySend. A drain always
// picks the oldest job of the highest non-empty level, rescanning after every job.
//
// Wake coalescing: the platform loop is signaled once per empty to non-empty transition
// of a priority queue, not once per job.
//
// Reentrancy: a job may block on Invoke from the affinity goroutine. The wait pumps the
// loop instead of deadlocking, so nested jobs run before the outer job resumes.
//
// Lifecycle: Dispose moves a dispatcher from active to disposing to finally disposed.
// Pending jobs are dropped and every blocked wait returns ErrShutdownWhileWaiting.
//
// # Example
//
//	err := dispatcher.Run(ctx, nil, func(d *dispatcher.Dispatcher) {
//		n, err := dispatcher.InvokeFunc(d, func(ctx context.Context) (int, error) {
//			return 42, nil
//		})
//		fmt.Println(n, err)
//	})
package dispatcher
