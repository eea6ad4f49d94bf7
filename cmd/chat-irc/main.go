// Command chat-irc runs the Chat<->IRC bridge. Configuration is loaded
// with spf13/viper from a config file plus CHATIRC_-prefixed environment
// overrides, grounded on Peter4825-matterircd and insomniacslk-irc-slack,
// both of which layer viper/flag-based config the same way. Entrypoint
// shape (flag parsing, signal handling, Open/Close lifecycle) adapted
// from rtk0c-go-discord-irc's main.go.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ahti123/slack-irc/bridge"
)

func main() {
	configPath := flag.String("config", "", "path to the bridge's config file")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	setLogLevel(*debugMode)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalln(errors.Wrap(err, "chat-irc: could not load config"))
	}
	cfg.DevMode = *devMode

	b, err := bridge.New(cfg)
	if err != nil {
		log.Fatalln(errors.Wrap(err, "chat-irc: could not build bridge"))
	}

	if err := b.Open(); err != nil {
		log.Fatalln(errors.Wrap(err, "chat-irc: could not open bridge"))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("chat-irc: shutting down")
	if err := b.Close(); err != nil {
		log.WithError(err).Warn("chat-irc: error during shutdown")
	}
}

func loadConfig(path string) (*bridge.Config, error) {
	cfg := bridge.MakeDefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("CHATIRC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	return cfg, nil
}

func setLogLevel(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}
