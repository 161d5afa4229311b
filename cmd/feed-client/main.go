package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"schoolsite/pkg/logger"
)

// Follows the staff live feed and prints every event.
func main() {
	url := flag.String("url", "ws://localhost:8080/ws/feed", "live feed URL")
	key := flag.String("key", os.Getenv("SCHOOLSITE_LIVE_STAFF_KEY"), "staff key")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	log := logger.Init(&logger.Config{Level: "info", Output: os.Stderr, TimeFormat: "15:04:05", Prefix: "feed"})

	for {
		if err := run(*url, *key, *pretty, log); err != nil {
			log.Warn("disconnected", "err", err)
		}
		time.Sleep(time.Second)
	}
}

func run(url, key string, pretty bool, log logger.Logger) error {
	hdr := http.Header{}
	hdr.Set("X-Staff-Key", key)
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	log.Info("connected", "url", url)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !pretty {
			fmt.Println(string(msg))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil {
			fmt.Println(string(msg))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
}
