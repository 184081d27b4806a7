package main

import (
	"fmt"
	"log"

	"github.com/m3rciful/relaybot/bot"
	"github.com/m3rciful/relaybot/core/cmd"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			appCfg, ok := cfg.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.NewApp(appCfg)
		},
	})
	if err != nil {
		log.Fatalf("relaybot: %v", err)
	}
}
