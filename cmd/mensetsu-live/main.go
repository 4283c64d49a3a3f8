// Command mensetsu-live runs a spoken mock-interview session from the
// terminal.
//
// Usage:
//
//	go run ./cmd/mensetsu-live
//
// Environment variables (all optional, see pkg/realtime/config.go):
//
//	MENSETSU_SESSION_URL              - Ephemeral credential endpoint
//	MENSETSU_REALTIME_URL             - Realtime model endpoint
//	MENSETSU_VOICE                    - ash or sage
//	MENSETSU_AUDIO_PLAYBACK_ENABLED   - Speaker playback toggle
//	MENSETSU_LOGS_EXPANDED            - Verbose event logging
//
// Controls:
//
//	<text>   - Send a typed answer (interrupts the interviewer)
//	/next    - Skip ahead to the next question
//	/talk    - Toggle push-to-talk: press once to speak, again to stop
//	/mute    - Toggle speaker playback
//	q        - Quit
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vango-go/mensetsu/pkg/agents"
	"github.com/vango-go/mensetsu/pkg/realtime"
	"github.com/vango-go/mensetsu/pkg/transcript"
)

func main() {
	_ = godotenv.Load()

	cfg, err := realtime.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if cfg.Prefs.LogsExpanded {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	registry, err := agents.MockInterview()
	if err != nil {
		logger.Error("agent set", "error", err)
		os.Exit(1)
	}

	store := transcript.NewStore()
	store.Subscribe(renderItem)

	// The store notifies synchronously after every mutation, so the
	// closing line is surfaced the moment it completes instead of on
	// the next keypress.
	done := make(chan struct{})
	var doneOnce sync.Once
	store.Subscribe(func(transcript.Item) {
		if realtime.InterviewComplete(store) {
			doneOnce.Do(func() { close(done) })
		}
	})

	state := realtime.NewSessionState()

	// The speaker device is process-global; acquire it once and reuse
	// it across reconnects.
	sinkFactory := memoizedSink(cfg)

	manager := realtime.NewManager(realtime.ManagerDeps{
		Logger:      logger,
		State:       state,
		Credentials: realtime.NewCredentialClient(cfg.SessionURL),
		Transport:   &realtime.WebSocketTransport{URL: cfg.RealtimeURL, Model: cfg.Model},
		NewSink:     sinkFactory,
	})

	interp := realtime.NewInterpreter(realtime.InterpreterDeps{
		Logger:   logger,
		State:    state,
		Store:    store,
		Registry: registry,
		Send:     manager.Send,
		Audio:    manager,
		Voice:    cfg.Voice,
	})
	manager.SetOnMessage(interp.HandleRaw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down")
		cancel()
		manager.Disconnect()
		os.Exit(0)
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	err = manager.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer manager.Disconnect()

	if err := interp.Bootstrap(); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	mic, micCleanup, micErr := startMic(ctx, cfg.AudioSampleRateHz)
	if micErr != nil {
		logger.Warn("microphone unavailable, push-to-talk disabled", "error", micErr)
	} else {
		defer micCleanup()
	}

	fmt.Println("mock interview session started")
	fmt.Println("type an answer, /next to advance, /talk to speak, q to quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	talking := false
	for {
		var input string
		select {
		case <-done:
			fmt.Println("interview finished")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input = strings.TrimSpace(line)
		}
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "q"):
			return
		case input == "/next":
			if err := interp.AdvanceNextQuestion(); err != nil {
				logger.Error("advance", "error", err)
			}
		case input == "/talk":
			if mic == nil {
				fmt.Println("microphone unavailable")
				continue
			}
			talking = !talking
			if talking {
				if err := interp.PushToTalkStart(); err != nil {
					logger.Error("push to talk", "error", err)
					talking = false
					continue
				}
				mic.resume(interp.SendAudioFrame)
				fmt.Println("recording, /talk again to send")
			} else {
				mic.pause()
				if err := interp.PushToTalkStop(); err != nil {
					logger.Error("push to talk", "error", err)
				}
			}
		case input == "/mute":
			manager.FlushAudio()
			fmt.Println("playback buffer dropped")
		default:
			if err := interp.SendUserText(input); err != nil {
				logger.Error("send text", "error", err)
			}
		}
	}
}

// memoizedSink hands out one shared speaker sink across reconnects, or
// a no-op sink when playback is disabled.
func memoizedSink(cfg realtime.Config) realtime.SinkFactory {
	if !cfg.Prefs.AudioPlaybackEnabled {
		return func() (realtime.AudioSink, error) {
			return realtime.NopSink{}, nil
		}
	}
	var shared realtime.AudioSink
	return func() (realtime.AudioSink, error) {
		if shared != nil {
			return shared, nil
		}
		sink, err := realtime.NewSpeakerSink(cfg.AudioSampleRateHz)
		if err != nil {
			return nil, err
		}
		shared = sink
		return shared, nil
	}
}

func renderItem(item transcript.Item) {
	if item.Hidden {
		return
	}
	switch item.Kind {
	case transcript.KindBreadcrumb:
		fmt.Printf("  -- %s\n", item.Title)
	case transcript.KindMessage:
		if item.Status != transcript.StatusDone {
			return
		}
		speaker := "interviewer"
		if item.Role == transcript.RoleUser {
			speaker = "you"
		}
		fmt.Printf("%s: %s\n", speaker, item.Title)
	}
}
