package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mixroom/pkg/syncclient"
)

// A terminal watcher: mirrors the shared queue and prints it on every change.
func main() {
	apiURL := getenv("API_URL", "http://localhost:3002/api")
	wsURL := getenv("WS_URL", "ws://localhost:3002/realtime/ws")

	api := syncclient.NewAPIClient(apiURL)
	agent := syncclient.New(api, syncclient.WebsocketDial(wsURL), syncclient.Options{
		MaxAttempts:    10,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		OnChange:       printQueue,
		OnOffline: func() {
			log.Printf("offline, reconnecting...")
		},
		OnOnline: func() {
			log.Printf("back in sync")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		_ = agent.Close()
		cancel()
	}()

	log.Printf("watching %s", wsURL)
	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("mixroom client: %v", err)
	}
}

func printQueue(entries []syncclient.Entry) {
	fmt.Printf("---- queue (%d tracks) ----\n", len(entries))
	for i, e := range entries {
		marker := "  "
		if e.IsPlaying {
			marker = "> "
		}
		fmt.Printf("%s%2d. %s - %s  (votes %+d, added by %s)\n",
			marker, i+1, e.Track.Artist, e.Track.Title, e.Votes, e.AddedBy)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
