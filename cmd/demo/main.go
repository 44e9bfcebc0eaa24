// Command demo walks through the three tiers end to end: a memory-only
// cache with LRU eviction, a disk-only cache with atomic writes, and a
// hybrid cache showing promotion-on-disk-hit and coalesced write-back.
package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tiercache/tiercache"
	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/hybrid"
	"github.com/tiercache/tiercache/memory"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	memoryDemo(logger)
	diskDemo(logger)
	hybridDemo(logger)
}

func memoryDemo(logger *zap.Logger) {
	fmt.Println("--- memory tier ---")
	c := tiercache.NewMemory[string, string](memory.Options[string]{
		MaxItems: 3,
		Policy:   tiercache.LRU,
		Logger:   logger,
	})

	c.Set("a", "apple")
	c.Set("b", "banana")
	c.Set("c", "cherry")
	c.Get("a") // touch a, making b the least recently used
	c.Set("d", "date")

	for _, k := range []string{"a", "b", "c", "d"} {
		v, ok := c.Get(k)
		fmt.Printf("get(%s) = %q, %v\n", k, v, ok)
	}
	fmt.Printf("stats: %+v\n", c.Stats())
}

func diskDemo(logger *zap.Logger) {
	fmt.Println("--- disk tier ---")
	dir, err := os.MkdirTemp("", "tiercache-demo-disk")
	if err != nil {
		fmt.Println("mkdir temp:", err)
		return
	}
	defer os.RemoveAll(dir)

	c, err := tiercache.NewDisk[string, string](disk.Options[string]{
		Dir:    dir,
		Codec:  codec.NewJSON[string](),
		Logger: logger,
	})
	if err != nil {
		fmt.Println("new disk cache:", err)
		return
	}
	defer c.Close()

	if err := c.Set("greeting", "hello from disk"); err != nil {
		fmt.Println("set:", err)
		return
	}
	v, ok := c.Get("greeting")
	fmt.Printf("get(greeting) = %q, %v\n", v, ok)
	usage, err := c.ComputeDiskUsage()
	if err != nil {
		fmt.Println("compute disk usage:", err)
		return
	}
	fmt.Printf("disk usage: %d bytes\n", usage)
}

func hybridDemo(logger *zap.Logger) {
	fmt.Println("--- hybrid tier ---")
	dir, err := os.MkdirTemp("", "tiercache-demo-hybrid")
	if err != nil {
		fmt.Println("mkdir temp:", err)
		return
	}
	defer os.RemoveAll(dir)

	c, err := tiercache.NewHybrid[string, int](hybrid.Options[string, int]{
		Memory: memory.Options[int]{MaxItems: 2, Policy: tiercache.LRU},
		Disk: disk.Options[int]{
			Dir:   dir,
			Codec: codec.NewJSON[int](),
		},
		PromoteOnDiskHit: true,
		FlushDelay:       50 * time.Millisecond,
		Logger:           logger,
	})
	if err != nil {
		fmt.Println("new hybrid cache:", err)
		return
	}
	defer c.Close()

	c.Set("one", 1)
	c.Set("two", 2)
	c.Set("three", 3) // evicts "one" from memory, coalesced write-back to disk

	c.Flush()
	time.Sleep(10 * time.Millisecond)

	v, src, ok := c.GetWithSource("one")
	fmt.Printf("get(one) = %d, source=%s, found=%v\n", v, src, ok)
	fmt.Printf("hybrid stats: %+v\n", c.Stats())
}
