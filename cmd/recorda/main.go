package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/recordabot/recorda/internal/profile"
	"github.com/recordabot/recorda/plugin/ai"
	"github.com/recordabot/recorda/plugin/ai/agent"
	"github.com/recordabot/recorda/plugin/reminder"
	"github.com/recordabot/recorda/plugin/weather"
	"github.com/recordabot/recorda/plugin/whatsapp"
	"github.com/recordabot/recorda/server"
	"github.com/recordabot/recorda/server/scheduler"
	"github.com/recordabot/recorda/store"
	"github.com/recordabot/recorda/store/db"
)

const greetingBanner = `
Recorda: asistente conversacional de recordatorios por WhatsApp
`

var rootCmd = &cobra.Command{
	Use:   "recorda",
	Short: "WhatsApp reminder assistant",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:   viper.GetString("mode"),
			Addr:   viper.GetString("addr"),
			Port:   viper.GetInt("port"),
			Data:   viper.GetString("data"),
			Driver: viper.GetString("driver"),
			DSN:    viper.GetString("dsn"),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := run(ctx, instanceProfile); err != nil {
			slog.Error("failed to run server", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8282)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8282, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("recorda")
	viper.AutomaticEnv()
}

func run(ctx context.Context, instanceProfile *profile.Profile) error {
	driver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to create db driver: %w", err)
	}
	storeInstance := store.New(driver, instanceProfile)
	defer storeInstance.Close()
	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	llmService, err := ai.NewLLMService(&ai.Config{
		APIKey:  instanceProfile.OpenAIAPIKey,
		BaseURL: instanceProfile.OpenAIBaseURL,
		Model:   instanceProfile.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}

	catalog, err := ai.LoadCatalog(instanceProfile.FunctionCatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load function catalog: %w", err)
	}

	// The scheduler must be running before the webhook accepts traffic;
	// otherwise event creation would fail to plan its jobs.
	jobScheduler := scheduler.New(scheduler.SystemClock())
	if err := jobScheduler.Start(); err != nil {
		return fmt.Errorf("failed to start job scheduler: %w", err)
	}
	defer jobScheduler.Stop()

	waClient := whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken:   instanceProfile.WhatsAppAccessToken,
		PhoneNumberID: instanceProfile.WhatsAppPhoneNumberID,
		APIVersion:    instanceProfile.WhatsAppAPIVersion,
	})

	location := instanceProfile.Location()
	planner := reminder.NewPlanner(reminder.Config{
		Store:     storeInstance,
		Scheduler: jobScheduler,
		Sink:      waClient,
		Advance:   instanceProfile.EventAdvance,
		Grace:     instanceProfile.ClampGrace,
		Location:  location,
	})

	replanned, err := planner.ReplanFromStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to replan pending reminders: %w", err)
	}
	slog.Info("replanned reminders from store", "events", replanned)

	weatherService := weather.NewService(weather.Config{
		APIKey:   instanceProfile.SerpAPIKey,
		Location: instanceProfile.SerpAPILocation,
	})

	// The router computes "today" for the local matchers and the system
	// prompt from the configured timezone, not the host zone.
	router := agent.NewRouter(agent.Config{
		LLM:       llmService,
		Catalog:   catalog,
		Customers: storeInstance,
		Calendar:  planner,
		Weather:   weatherService,
		Now: func() time.Time {
			return time.Now().In(location)
		},
	})

	httpServer := server.NewServer(instanceProfile, jobScheduler, router, waClient)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	fmt.Print(greetingBanner)
	slog.Info("recorda started",
		"version", instanceProfile.Version,
		"mode", instanceProfile.Mode,
		"driver", instanceProfile.Driver,
		"port", instanceProfile.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server cleanly", "error", err)
	}
	slog.Info("recorda stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
