package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/outreachlabs/hirecall/classify"
	"github.com/outreachlabs/hirecall/dialogue"
	"github.com/outreachlabs/hirecall/discovery"
	"github.com/outreachlabs/hirecall/engine"
	"github.com/outreachlabs/hirecall/feed"
	"github.com/outreachlabs/hirecall/internal/client"
	"github.com/outreachlabs/hirecall/internal/config"
	"github.com/outreachlabs/hirecall/server"
	"github.com/outreachlabs/hirecall/staging"
	"github.com/outreachlabs/hirecall/synthesis"
	"github.com/outreachlabs/hirecall/telephony"
	"github.com/outreachlabs/hirecall/transcribe"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the call webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if cfg.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required to receive webhooks")
	}
	publicURL := strings.TrimRight(cfg.Server.PublicURL, "/")

	twilioClient, err := client.New(&client.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
	})
	if err != nil {
		return err
	}

	speechClient, err := newSpeechClient(cfg.Speech)
	if err != nil {
		return err
	}

	dialogueProvider, err := dialogue.New(
		dialogue.WithClient(speechClient),
		dialogue.WithModel(cfg.Speech.DialogueModel),
	)
	if err != nil {
		return err
	}

	classifier, err := classify.New(
		classify.WithClient(speechClient),
		classify.WithModel(cfg.Speech.ClassifierModel),
	)
	if err != nil {
		return err
	}

	transcriber, err := transcribe.New(
		transcribe.WithClient(speechClient),
		transcribe.WithModel(cfg.Speech.TranscriptionModel),
		transcribe.WithRecordingFetcher(twilioClient),
	)
	if err != nil {
		return err
	}

	synthesizer, err := synthesis.New(
		synthesis.WithClient(speechClient),
		synthesis.WithModel(cfg.Speech.SynthesisModel),
		synthesis.WithVoice(cfg.Speech.Voice),
		synthesis.WithResponseFormat(cfg.Speech.ResponseFormat),
	)
	if err != nil {
		return err
	}

	store, err := staging.New(
		staging.WithDir(cfg.Staging.Dir),
		staging.WithBaseURL(publicURL+strings.TrimRight(server.AudioPath, "/")),
	)
	if err != nil {
		return err
	}

	hub := feed.New(feed.WithLogger(logger))
	defer hub.Close()

	eng, err := engine.New(engine.Services{
		Dialogue:    dialogueProvider,
		Classifier:  classifier,
		Synthesizer: synthesizer,
		Transcriber: transcriber,
		Stager:      store,
	},
		engine.WithLogger(logger),
		engine.WithMaxTurns(cfg.Call.MaxTurns),
		engine.WithGatherTimeout(cfg.Call.GatherTimeout),
		engine.WithObserver(hub.Broadcast),
	)
	if err != nil {
		return err
	}

	phone, err := telephony.New(
		telephony.WithClient(twilioClient),
		telephony.WithEngine(eng),
		telephony.WithPublicURL(publicURL),
		telephony.WithFromNumber(cfg.Twilio.PhoneNumber),
		telephony.WithVoice(cfg.Twilio.Voice),
		telephony.WithRingTimeout(cfg.Twilio.RingTimeout),
		telephony.WithTimeLimit(cfg.Twilio.CallTimeLimit),
		telephony.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer phone.Close()

	serverOpts := []server.Option{
		server.WithTelephony(phone),
		server.WithStaging(store),
		server.WithFeed(hub),
		server.WithLogger(logger),
	}
	if cfg.Places.APIKey != "" {
		finder, err := discovery.New(discovery.WithAPIKey(cfg.Places.APIKey))
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, server.WithDiscovery(finder))
	}

	srv, err := server.New(serverOpts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr(), "public_url", publicURL)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// newSpeechClient builds the shared OpenAI-compatible client for the speech
// and language providers.
func newSpeechClient(cfg config.SpeechConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech.api_key (or SPEECH_API_KEY) is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return openai.NewClientWithConfig(clientCfg), nil
}
