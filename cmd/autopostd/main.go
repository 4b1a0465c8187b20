package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/groupkit/autopost/internal/automation"
	"github.com/groupkit/autopost/internal/config"
	"github.com/groupkit/autopost/internal/logger"
	"github.com/groupkit/autopost/internal/pending"
	"github.com/groupkit/autopost/internal/profile"
	"github.com/groupkit/autopost/internal/storage"
)

// connectWithRetry attempts to connect to Redis with exponential backoff
func connectWithRetry(redisURL string, maxRetries int, log logger.Logger) (*storage.RedisStore, error) {
	var store *storage.RedisStore
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		store, err = storage.NewRedisStore(redisURL)
		if err == nil {
			return store, nil
		}

		// Calculate exponential backoff delay: 2^attempt seconds (max 30 seconds)
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		log.Warn("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
			"retry_in", delay)

		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

// openStore creates the configured document backend
func openStore(cfg *config.Config, log logger.Logger) (storage.DocumentStore, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return connectWithRetry(cfg.RedisURL, 5, log)
	default:
		return storage.NewBadgerStore(cfg.DataDir)
	}
}

// httpCreateEvent POSTs resolved payloads to the configured endpoint
func httpCreateEvent(endpoint string) automation.CreateEventFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, groupID string, payload automation.EventPayload, startUTC, endUTC time.Time) (string, error) {
		body, err := json.Marshal(map[string]any{
			"groupId":  groupID,
			"event":    payload,
			"startsAt": startUTC,
			"endsAt":   endUTC,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal event request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build event request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("event request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("event request rejected: %s", resp.Status)
		}

		var result struct {
			EventID string `json:"eventId"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("failed to decode event response: %w", err)
		}
		if result.EventID == "" {
			return "", errors.New("event response missing eventId")
		}
		return result.EventID, nil
	}
}

// dryRunCreateEvent logs what would have been published. Used when no
// endpoint is configured.
func dryRunCreateEvent(log logger.Logger) automation.CreateEventFunc {
	return func(_ context.Context, groupID string, payload automation.EventPayload, startUTC, _ time.Time) (string, error) {
		eventID := uuid.New().String()
		log.Info("Dry-run publish",
			"group_id", groupID,
			"title", payload.Title,
			"starts_at", startUTC,
			"event_id", eventID)
		return eventID, nil
	}
}

// loadCatalog reads the persisted profile catalog, if any
func loadCatalog(ctx context.Context, docs storage.DocumentStore, log logger.Logger) *profile.Catalog {
	catalog := profile.NewCatalog()

	data, err := docs.Load(ctx, storage.KeyProfiles)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("Failed to load profile catalog, starting empty", "error", err)
		}
		return catalog
	}
	if err := catalog.LoadJSON(data); err != nil {
		log.Warn("Profile catalog is malformed, starting empty", "error", err)
	}
	return catalog
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	// Set as default logger
	logger.SetDefault(log)

	log.Info("Autopost daemon starting",
		"storage_backend", cfg.StorageBackend,
		"months_ahead", cfg.MonthsAhead,
		"max_per_recalc", cfg.MaxPerRecalc)

	docs, err := openStore(cfg, log)
	if err != nil {
		log.Error("Failed to open document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := loadCatalog(ctx, docs, log)
	log.Info("Profile catalog loaded", "profiles", catalog.Len())

	createEvent := dryRunCreateEvent(log)
	if cfg.EventEndpoint != "" {
		createEvent = httpCreateEvent(cfg.EventEndpoint)
	}

	notify := automation.Notifications{
		EventMissed: func(ev *pending.Event) {
			log.Warn("Event missed",
				"pending_event_id", ev.ID,
				"group_id", ev.GroupID,
				"profile_key", ev.ProfileKey,
				"scheduled_publish_time", ev.ScheduledPublishTime)
		},
		EventCreated: func(ev *pending.Event, eventID string) {
			log.Info("Event created",
				"pending_event_id", ev.ID,
				"event_id", eventID,
				"group_id", ev.GroupID,
				"profile_key", ev.ProfileKey)
		},
	}

	engineCfg := automation.DefaultConfig()
	engineCfg.MonthsAhead = cfg.MonthsAhead
	engineCfg.MaxPerRecalc = cfg.MaxPerRecalc
	engineCfg.Timers.RetryDelay = cfg.RetryDelay
	engineCfg.Timers.RecheckDelay = cfg.RecheckDelay
	engineCfg.Timers.ExactHorizon = cfg.ExactHorizon

	engine := automation.New(engineCfg, docs, catalog, createEvent, notify, nil, log, nil)
	defer engine.Close()

	if err := engine.Initialize(ctx); err != nil {
		log.Error("Failed to initialize automation engine", "error", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("Autopost daemon ready",
		"pending_events", len(engine.PendingEvents("", true)),
		"missed_events", engine.MissedCount(""))

	sig := <-sigChan
	log.Info("Shutting down", "signal", sig.String())
	cancel()
}
