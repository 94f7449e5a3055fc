// Command rider joins another device's group ride and prints the shared
// state as it changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-groupride/internal/config"
	"backend-groupride/internal/group"
	"backend-groupride/internal/stream"
)

type options struct {
	hubURL string
	self   string
	host   string
	invite string
	name   string
	song   string
	artist string
}

func main() {
	cfg := config.Load()

	var opts options
	flag.StringVar(&opts.hubURL, "hub", "ws://localhost:8080/group", "host hub base URL")
	flag.StringVar(&opts.self, "peer", cfg.DeviceID, "this rider's peer id")
	flag.StringVar(&opts.host, "host", "host", "host peer id")
	flag.StringVar(&opts.invite, "invite", "", "invite token issued by the host")
	flag.StringVar(&opts.name, "name", "", "display name")
	flag.StringVar(&opts.song, "song", "", "song title to request after joining")
	flag.StringVar(&opts.artist, "artist", "", "artist for -song")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		log.Fatalf("rider: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer) error {
	conn, err := stream.Dial(ctx, opts.hubURL, group.PeerID(opts.self), group.PeerID(opts.host), opts.invite)
	if err != nil {
		return err
	}
	defer conn.Close()

	mirror := group.NewMirror(group.MirrorConfig{
		Self:        group.PeerID(opts.self),
		HostID:      group.PeerID(opts.host),
		DisplayName: opts.name,
		JoinTimeout: cfg.JoinTimeout,
	}, conn)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go mirror.Run(runCtx)

	if err := mirror.Join(ctx); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	log.Printf("joined group hosted by %s", opts.host)

	if opts.song != "" {
		if err := mirror.SubmitSongRequest(opts.song, opts.artist); err != nil {
			return fmt.Errorf("song request: %w", err)
		}
	}

	return watch(ctx, mirror, out, 250*time.Millisecond)
}

// watch prints every newly applied state until ctx ends or the host goes away.
func watch(ctx context.Context, mirror *group.Mirror, out io.Writer, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	enc := json.NewEncoder(out)
	var lastSeq uint64
	printed := false
	for {
		state := mirror.State()
		if !printed || state.Seq != lastSeq {
			if err := enc.Encode(state); err != nil {
				return err
			}
			lastSeq = state.Seq
			printed = true
		}
		if mirror.Status() == group.StatusDisconnected {
			log.Printf("host disconnected")
			return nil
		}

		select {
		case <-ctx.Done():
			_ = mirror.Leave()
			return nil
		case <-ticker.C:
		}
	}
}
