package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/app"
)

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	streamURL := flag.String("url", "", "Grab a single playlist url and exit")
	batchFile := flag.String("batch", "", "Grab every stream from a batch link-list file and exit")
	format := flag.String("format", "", "Output format: raw-container, audio-extract or streaming-mp4")
	flag.Parse()

	cfgPath := *cfgFileName
	if _, err := os.Stat(cfgPath); err != nil && cfgPath == "config.yml" {
		// One-shot runs work without a config file, defaults apply.
		cfgPath = ""
	}

	a := app.New(cfgPath)

	c := make(chan os.Signal, 1)
	defer close(c)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	if *streamURL != "" || *batchFile != "" {
		go func() {
			<-c
			fmt.Println("\nReceived termination signal. Shutting down...")
			a.Stop()
			os.Exit(1)
		}()

		var err error
		if *streamURL != "" {
			err = a.RunOnce(*streamURL, *format)
		} else {
			err = a.RunBatch(*batchFile, *format)
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		return
	}

	go a.Start()

	<-c
	fmt.Println("Received termination signal. Shutting down...")
	a.Stop()
	time.Sleep(2 * time.Second)
	fmt.Println("done")
}
