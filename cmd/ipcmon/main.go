package main

import (
	"context"
	"flag"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/robotalks/mcuipc/pkg/ipc/wire"
	"github.com/robotalks/mcuipc/pkg/link/mqtt"
)

var (
	mqttURL     = "mqtt://localhost:1883/mcuipc/"
	discoverOff bool
)

func init() {
	if val := os.Getenv("IPC_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&discoverOff, "no-discover", discoverOff, "Skip listing announced nodes.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(10 * time.Second); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	if !discoverOff {
		nodes, err := mqtt.Discover(context.Background(), q, 0)
		if err != nil {
			log.Fatalln(err)
		}
		for _, info := range nodes {
			log.Printf("node %s/%s: capacity=%d payload=%d checksum=%s",
				info.LinkID, info.Role, info.Capacity, info.PayloadSize, info.Checksum)
		}
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.TopicMeta) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		body, err := wire.Decode(payload)
		if err != nil {
			log.Printf("%s: bad frame: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(body)).Type().Name(), body.String())
	}))
	<-(chan struct{})(nil)
}
