// Bifrost is a transparent Minecraft Java edition proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/proxy"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:  "bifrost",
		Usage: "A transparent Minecraft Java edition proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				EnvVars: []string{"BIFROST_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
				EnvVars: []string{"BIFROST_DEBUG"},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}

	warns, errs := cfg.Validate()
	for _, w := range warns {
		log.Info("config warning", "warn", w.Error())
	}
	if len(errs) != 0 {
		for _, e := range errs {
			log.Error(e, "config error")
		}
		return fmt.Errorf("config validation failed with %d errors", len(errs))
	}

	p, err := proxy.New(proxy.Options{
		Config: cfg,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("error creating proxy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return p.Start(logr.NewContext(ctx, log))
}

// loadConfig reads the config file, if any, over the defaults.
func loadConfig(path string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.SetEnvPrefix("BIFROST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bifrost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// No config file found, run with the defaults.
	}

	cfg := new(config.Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func newLogger(debug bool) (logr.Logger, error) {
	var zc zap.Config
	if debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}
