package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/MixinNetwork/rworld/storage"
)

// go run ./cmd/dump-events -dir /var/lib/rworld/events
func main() {
	dir := flag.String("dir", "", "the events journal directory")
	since := flag.Uint64("since", 0, "the event sequence to begin with")
	flag.Parse()
	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := storage.NewBadgerStore(*dir)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	err = dumpEvents(store, *since, os.Stdout)
	if err != nil {
		panic(err)
	}
}

func dumpEvents(store storage.Store, offset uint64, out io.Writer) error {
	enc := json.NewEncoder(out)
	for {
		events, err := store.ReadEvents(offset, 100)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		for _, e := range events {
			err = enc.Encode(e)
			if err != nil {
				return fmt.Errorf("encode event %d %v", e.Sequence, err)
			}
		}
		offset = events[len(events)-1].Sequence + 1
	}
}
