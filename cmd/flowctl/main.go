// Command flowctl is a test producer/consumer against a running
// flowlogd broker: it sends a batch of random-payload messages, then
// fetches them back by offset and checks the round trip, mirroring the
// teacher's cmd/client produce-then-verify flow.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"flowlog/internal/client"
	"flowlog/internal/message"
	"flowlog/internal/registry"
)

func main() {
	addr := flag.String("broker", "127.0.0.1:9092", "broker UDP address")
	stream := flag.String("stream", "demo", "stream id")
	topic := flag.String("topic", "events", "topic id")
	partitionID := flag.Uint("partition", 0, "partition id")
	count := flag.Int("count", 100, "number of messages to produce")
	flag.Parse()

	key := registry.Key{StreamID: *stream, TopicID: *topic, PartitionID: uint32(*partitionID)}

	c, err := client.NewClient(client.Config{BrokerAddr: *addr})
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	fmt.Printf("producing %d messages to %s\n", *count, key)

	payloads := make([][]byte, *count)
	for i := range payloads {
		payloads[i] = []byte(fmt.Sprintf("message-%d-%d", i, rand.Intn(1_000_000)))
	}

	batch := make([]*message.Message, 0, len(payloads))
	for _, p := range payloads {
		batch = append(batch, client.NewMessage(p))
	}

	firstOffset, err := c.Produce(key, batch)
	if err != nil {
		log.Fatalf("produce failed: %v", err)
	}
	fmt.Printf("produced at first offset %d\n", firstOffset)

	fetched, err := c.FetchByOffset(key, firstOffset, uint32(len(payloads)))
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}

	ok := 0
	for i, m := range fetched {
		if i < len(payloads) && string(m.Payload) == string(payloads[i]) {
			ok++
		}
	}
	fmt.Printf("fetched %d messages, %d matched expected payloads\n", len(fetched), ok)
}
