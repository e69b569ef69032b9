package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	brokerclient "github.com/wicara-ai/wicara/adapters/broker"
	"github.com/wicara-ai/wicara/adapters/capture"
	"github.com/wicara-ai/wicara/adapters/playback"
	"github.com/wicara-ai/wicara/domain/entities"
	"github.com/wicara-ai/wicara/internal/config"
	"github.com/wicara-ai/wicara/internal/session"
	"github.com/wicara-ai/wicara/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Honor a local .env file when present
	godotenv.Load()

	cfg := config.ClientFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize adapters
	broker, err := brokerclient.NewClient(brokerclient.ClientConfig{
		BaseURL:   cfg.BrokerURL,
		AuthToken: os.Getenv("WICARA_AUTH_TOKEN"),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create broker client", zap.Error(err))
	}

	controller := session.NewController(broker, cfg, logger)
	microphone := capture.NewMicrophone(cfg.DeviceSampleRate, cfg.BlockSize, logger)
	captureEngine := capture.NewEngine(microphone, cfg, logger)
	speaker := playback.NewSpeaker(cfg.OutputSampleRate, logger)
	playbackEngine := playback.NewEngine(speaker, cfg, logger)

	events := usecase.Events{
		OnTranscript: func(entry entities.TranscriptEntry) {
			fmt.Printf("\r%-6s| %s\n> ", entry.Sender, entry.Text)
		},
		OnStateChange: func(state entities.ConnectionState) {
			fmt.Printf("\r[%s]\n> ", state)
		},
		OnError: func(err error) {
			fmt.Printf("\rerror: %v\n> ", err)
		},
	}

	orchestrator := usecase.NewChatOrchestrator(
		controller, captureEngine, playbackEngine, broker, events, logger)
	if cfg.AgentID != "" {
		orchestrator.SelectAgent(cfg.AgentID)
	}

	ctx := context.Background()
	stdin := bufio.NewScanner(os.Stdin)

	if !runIntro(ctx, orchestrator, stdin) {
		return
	}

	fmt.Println("Connected. Speak into the microphone or type a message.")
	fmt.Println("Commands: /agents  /new  /stop  /id  /quit")
	fmt.Print("> ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			shutdown(orchestrator, captureEngine, playbackEngine, logger)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(orchestrator, captureEngine, playbackEngine, logger)
				return
			}
			if done := handleLine(ctx, orchestrator, line); done {
				shutdown(orchestrator, captureEngine, playbackEngine, logger)
				return
			}
			fmt.Print("> ")
		}
	}
}

// runIntro walks the intro and terms steps. Returns false when the user
// declines.
func runIntro(ctx context.Context, o *usecase.ChatOrchestrator, stdin *bufio.Scanner) bool {
	fmt.Println("wicara — voice chat with a conversational agent.")
	fmt.Print("Press enter to continue... ")
	if !stdin.Scan() {
		return false
	}
	o.BeginTerms()

	fmt.Println("Audio from your microphone will be streamed to the agent")
	fmt.Println("provider while connected. Transcripts stay in this terminal.")
	fmt.Print("Accept and connect? [y/N] ")
	if !stdin.Scan() || !strings.EqualFold(strings.TrimSpace(stdin.Text()), "y") {
		o.CancelTerms()
		fmt.Println("Cancelled.")
		return false
	}

	if err := o.AcceptTerms(ctx); err != nil {
		fmt.Printf("failed to connect: %v\n", err)
		return false
	}
	return true
}

// handleLine processes one line of input. Returns true on /quit.
func handleLine(ctx context.Context, o *usecase.ChatOrchestrator, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/stop":
		o.StopAudio()
	case line == "/id":
		fmt.Printf("conversation: %s\n", o.ConversationID())
	case line == "/new":
		if err := o.StartNewConversation(ctx); err != nil {
			fmt.Printf("failed to start new conversation: %v\n", err)
		}
	case line == "/agents":
		agents, err := o.ListAgents(ctx)
		if err != nil {
			fmt.Printf("failed to list agents: %v\n", err)
			return false
		}
		for _, agent := range agents {
			fmt.Printf("  %s  %s\n", agent.AgentID, agent.Name)
		}
	case strings.HasPrefix(line, "/"):
		fmt.Printf("unknown command %q\n", line)
	default:
		if err := o.SendText(line); err != nil {
			fmt.Printf("failed to send: %v\n", err)
		}
	}
	return false
}

func shutdown(o *usecase.ChatOrchestrator, captureEngine *capture.Engine, playbackEngine *playback.Engine, logger *zap.Logger) {
	o.Disconnect()
	if err := captureEngine.StopRecording(); err != nil {
		logger.Warn("Failed to stop recording", zap.Error(err))
	}
	if err := playbackEngine.Close(); err != nil {
		logger.Warn("Failed to close playback", zap.Error(err))
	}
	fmt.Println("\nbye")
}
