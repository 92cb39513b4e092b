package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gavago/roomchat/internal/config"
	"github.com/gavago/roomchat/internal/daemon"
	"github.com/gavago/roomchat/internal/session"
	"go.uber.org/fx"
)

func main() {
	pseudoFlag := flag.String("pseudo", "", "display name (overrides config)")
	configFlag := flag.String("config", session.ConfigPath(), "config file path")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		cfg = config.Default()
	}

	if cfg.DataDir != "" {
		session.SetBaseDir(cfg.DataDir)
	}

	pseudo := cfg.Pseudo
	if *pseudoFlag != "" {
		pseudo = *pseudoFlag
	}
	if err := session.ValidatePseudo(pseudo); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Pseudo: pseudo, Cfg: cfg}),
	)

	app.Run()
}
