package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonical/maas-sub023/internal/logging"
	"github.com/canonical/maas-sub023/internal/observability"
	"github.com/canonical/maas-sub023/internal/ops"
	"github.com/canonical/maas-sub023/internal/tftp/backend"
	"github.com/canonical/maas-sub023/internal/tftp/datagram"
	"github.com/canonical/maas-sub023/internal/tftp/loopback"
	"github.com/canonical/maas-sub023/internal/tftp/session"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	lossRate := flag.Float64("loss", -1, "datagram loss probability, overrides config")
	filePath := flag.String("file", "", "file to push through the link, overrides config")
	flag.Parse()

	if err := run(*configPath, *lossRate, *filePath); err != nil {
		fmt.Fprintf(os.Stderr, "tftpsim: %v\n", err)
		os.Exit(1)
	}
}

// run pushes one file through a simulated lossy link: a read session on
// one end streams it, a write session on the other receives it, and the
// result is verified byte for byte.
func run(configPath string, lossOverride float64, fileOverride string) error {
	logging.ConfigureRuntime()
	logger := observability.InitLogger("tftpsim")
	observability.RegisterMetrics()

	cfg := defaultSimConfig()
	if configPath != "" {
		loaded, err := loadSimConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if lossOverride >= 0 {
		cfg.LossRate = lossOverride
	}
	if fileOverride != "" {
		cfg.File = fileOverride
	}

	reader, content, name, err := sourceContent(cfg)
	if err != nil {
		return err
	}

	registry := session.NewRegistry()
	opsServer := ops.NewServer(cfg.Runtime.Ops.Addr, cfg.Runtime.Ops.CorsOrigins, registry, logger)
	go func() {
		if err := opsServer.Run(); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	logger.Info().
		Str("file", name).
		Int("bytes", len(content)).
		Float64("loss_rate", cfg.LossRate).
		Int("block_size", cfg.Runtime.BlockSize).
		Msg("starting simulated transfer")

	writer, err := transfer(cfg, registry, reader, len(content), logger)
	if err != nil {
		return err
	}

	if !writer.Finished() {
		return fmt.Errorf("transfer did not complete")
	}
	if !bytes.Equal(content, writer.Content()) {
		return fmt.Errorf("received %d bytes, want %d, content mismatch", len(writer.Content()), len(content))
	}
	logger.Info().Int("bytes", len(writer.Content())).Msg("transfer verified")
	return nil
}

// sourceContent builds the sending Reader plus the expected bytes for
// verification. Files go through the content cache, the same path a
// server would use for repeat transfers; without a file the simulator
// runs on generated demo content.
func sourceContent(cfg simConfig) (backend.Reader, []byte, string, error) {
	if cfg.File == "" {
		content := bytes.Repeat([]byte("simulated boot image payload\n"), 2048)
		return backend.NewMemoryReader(content), content, "<generated>", nil
	}
	content, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, nil, "", fmt.Errorf("read input file: %w", err)
	}
	cache, err := backend.NewCache(cfg.Runtime.CacheSize)
	if err != nil {
		return nil, nil, "", err
	}
	reader, err := cache.Open(cfg.File)
	if err != nil {
		return nil, nil, "", err
	}
	return reader, content, cfg.File, nil
}

func transfer(cfg simConfig, registry *session.Registry, reader backend.Reader, size int, logger zerolog.Logger) (*backend.MemoryWriter, error) {
	var rng *rand.Rand
	if cfg.LossRate > 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	left, right := loopback.NewLink(loopback.LinkOptions{
		LossRate: cfg.LossRate,
		Rng:      rng,
	})

	sessionCfg := cfg.Runtime.SessionConfig()
	done := make(chan struct{}, 2)

	sender := session.NewReadSession(reader, left, session.Options{
		ID:     "sim-sender",
		Config: sessionCfg,
		Logger: logger,
		OnClose: func() {
			registry.Remove("sim-sender")
			done <- struct{}{}
		},
	})
	writer := backend.NewMemoryWriter()
	receiver := session.NewWriteSession(writer, right, session.Options{
		ID:     "sim-receiver",
		Config: sessionCfg,
		Logger: logger,
		OnClose: func() {
			registry.Remove("sim-receiver")
			done <- struct{}{}
		},
	})
	registry.Register("sim-sender", sender)
	registry.Register("sim-receiver", receiver)

	left.Receive(func(b []byte) {
		if dg, err := datagram.Parse(b); err == nil {
			sender.HandleDatagram(dg)
		}
	})
	right.Receive(func(b []byte) {
		if dg, err := datagram.Parse(b); err == nil {
			receiver.HandleDatagram(dg)
		}
	})

	receiver.Start()
	sender.Start()

	deadline := time.After(transferDeadline(sessionCfg, size))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
			// The receiver lingers in its grace period after the sender
			// closes; the content is already committed, so shut it down
			// rather than idling the run out.
			if receiver.Active() && receiver.Snapshot().Completed {
				receiver.Cancel()
			}
		case <-deadline:
			sender.Cancel()
			receiver.Cancel()
			return nil, fmt.Errorf("transfer deadline exceeded")
		}
	}
	return writer, nil
}

// transferDeadline bounds the whole run: every block could in the worst
// case burn its full retry budget.
func transferDeadline(cfg session.Config, size int) time.Duration {
	var budget time.Duration
	for _, wait := range cfg.Retries {
		budget += wait
	}
	blocks := size/cfg.BlockSize + 2
	deadline := time.Duration(blocks) * budget
	if deadline < 30*time.Second {
		deadline = 30 * time.Second
	}
	return deadline
}
