// Command cachefsd runs the block-granular caching filesystem engine:
// a read/write cache in front of an object backend (HTTP, S3, or a
// mirrored directory), with weighted-LRU eviction and bounded
// sequential prefetch.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/cachefs/cmd/cachefsd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
