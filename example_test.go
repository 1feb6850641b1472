package taskexec_test

import (
	"context"
	"fmt"
	"time"

	taskexec "github.com/DevAlishar/taskexec"
)

// ExampleWorkerPool demonstrates running blocking work in parallel with
// a single import.
func ExampleWorkerPool() {
	pool := taskexec.NewWorkerPool("example", 2)
	pool.Start(context.Background())
	defer pool.Shutdown(true)

	h := pool.Submit(func(ctx context.Context) (any, error) {
		return "hello from a worker", nil
	})

	v, err := h.Await(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(v)

	// Output:
	// hello from a worker
}

// ExampleScheduler demonstrates cooperative units sharing one logical
// thread.
func ExampleScheduler() {
	sched := taskexec.NewScheduler("example", nil)

	first := sched.Spawn(func(tc *taskexec.TaskContext) (any, error) {
		fmt.Println("first, before sleep")
		if err := tc.Sleep(time.Millisecond); err != nil {
			return nil, err
		}
		fmt.Println("first, after sleep")
		return nil, nil
	})
	sched.Spawn(func(tc *taskexec.TaskContext) (any, error) {
		fmt.Println("second runs while first sleeps")
		return nil, nil
	})

	if _, err := sched.RunUntilComplete(first); err != nil {
		fmt.Println("error:", err)
	}

	// Output:
	// first, before sleep
	// second runs while first sleeps
	// first, after sleep
}

// ExampleScheduler_Gather demonstrates collecting results in input
// order regardless of completion order.
func ExampleScheduler_Gather() {
	sched := taskexec.NewScheduler("example", nil)

	slow := sched.Spawn(func(tc *taskexec.TaskContext) (any, error) {
		if err := tc.Sleep(10 * time.Millisecond); err != nil {
			return nil, err
		}
		return "slow", nil
	})
	fast := sched.Spawn(func(tc *taskexec.TaskContext) (any, error) {
		return "fast", nil
	})

	results, err := sched.Gather(slow, fast)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(results[0], results[1])

	// Output:
	// slow fast
}

// ExampleMap demonstrates fanning a slice out over the pool while
// keeping results lined up with the inputs.
func ExampleMap() {
	pool := taskexec.NewWorkerPool("example", 4)
	pool.Start(context.Background())
	defer pool.Shutdown(true)

	handles := taskexec.Map(pool, func(ctx context.Context, n int) (any, error) {
		return n * n, nil
	}, []int{1, 2, 3, 4})

	for _, h := range handles {
		v, err := h.Await(context.Background())
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println(v)
	}

	// Output:
	// 1
	// 4
	// 9
	// 16
}
