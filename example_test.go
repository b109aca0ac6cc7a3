package lockfree_test

import (
	"fmt"

	"github.com/omnicontainers/lockfree"
)

func ExampleStack() {
	s, err := lockfree.NewStack(4, 4)
	if err != nil {
		panic(err)
	}

	_ = s.Push([]byte{1, 2, 3, 4})
	_ = s.Push([]byte{5, 6, 7, 8})

	var buf [4]byte
	s.Pop(buf[:])
	fmt.Println(buf)
	// Output: [5 6 7 8]
}

func ExampleRingQueue() {
	q, err := lockfree.NewRingQueue(4, 4)
	if err != nil {
		panic(err)
	}

	_ = q.Enqueue([]byte{1, 2, 3, 4})
	_ = q.Enqueue([]byte{5, 6, 7, 8})

	var buf [4]byte
	q.Dequeue(buf[:])
	fmt.Println(buf)
	// Output: [1 2 3 4]
}

func ExampleBlockQueue() {
	q, err := lockfree.NewBlockQueue[string]()
	if err != nil {
		panic(err)
	}

	_ = q.Enqueue("first")
	_ = q.Enqueue("second")

	v, _ := q.TryDequeue()
	fmt.Println(v)
	// Output: first
}
