// Command loadtest drives a hybrid cache with many concurrent goroutines
// writing and reading a small key space, to exercise the coalesced
// write-back path and the disk-fallback read dedup path under
// contention.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiercache/tiercache"
	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/hybrid"
	"github.com/tiercache/tiercache/memory"
)

func main() {
	workers := flag.Int("workers", 32, "concurrent goroutines")
	keys := flag.Int("keys", 64, "distinct keys shared across workers")
	duration := flag.Duration("duration", 3*time.Second, "how long to run")
	flag.Parse()

	dir, err := os.MkdirTemp("", "tiercache-loadtest")
	if err != nil {
		fmt.Println("mkdir temp:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	c, err := tiercache.NewHybrid[int, string](hybrid.Options[int, string]{
		Memory:           memory.Options[string]{MaxItems: *keys / 4, Policy: tiercache.LRU},
		Disk:             disk.Options[string]{Dir: dir, Codec: codec.NewJSON[string]()},
		PromoteOnDiskHit: true,
		FlushDelay:       20 * time.Millisecond,
	})
	if err != nil {
		fmt.Println("new hybrid cache:", err)
		os.Exit(1)
	}
	defer c.Close()

	var sets, gets, hits uint64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				key := rng.Intn(*keys)
				if rng.Intn(3) == 0 {
					c.Set(key, fmt.Sprintf("value-%d-%d", key, rng.Int()))
					atomic.AddUint64(&sets, 1)
					continue
				}
				_, ok := c.Get(key)
				atomic.AddUint64(&gets, 1)
				if ok {
					atomic.AddUint64(&hits, 1)
				}
			}
		}(int64(w) + 1)
	}

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	c.Flush()
	fmt.Printf("sets=%d gets=%d hits=%d\n", sets, gets, hits)
	fmt.Printf("hybrid stats: %+v\n", c.Stats())
	fmt.Printf("memory stats: %+v\n", c.MemoryStats())
	fmt.Printf("disk stats:   %+v\n", c.DiskStats())
}
