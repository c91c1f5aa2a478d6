package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Hubmakerlabs/mockrelay/app"
	"github.com/Hubmakerlabs/mockrelay/pkg/interrupt"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
	"github.com/alexflint/go-arg"
	"github.com/mdp/qrterminal/v3"
)

var (
	AppName = "mockrelay"
	Version = app.Version
)

const defaultConfigFile = "mockrelay.json"

var args app.Config

func main() {
	var log, chk = slog.New(os.Stderr)
	arg.MustParse(&args)
	var err error
	if args.InitCfgCmd != nil {
		path := args.ConfigFile
		if path == "" {
			path = defaultConfigFile
		}
		if err = args.Validate(); chk.E(err) {
			os.Exit(1)
		}
		if err = args.Save(path); chk.E(err) {
			log.E.F("failed to write relay configuration: '%s'", err)
			os.Exit(1)
		}
		log.I.Ln("wrote configuration to", path)
		return
	}
	if args.ConfigFile != "" {
		if err = args.Load(args.ConfigFile); chk.E(err) {
			log.E.F("failed to load relay configuration: '%s'", err)
			os.Exit(1)
		}
	}
	if err = args.Validate(); err != nil {
		log.F.Ln(err)
		os.Exit(1)
	}
	slog.SetLogLevelString(args.LogLevel)
	if args.LogFile != "" {
		var f *os.File
		if f, err = os.OpenFile(args.LogFile,
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); chk.E(err) {
			log.W.F("not writing log file: %v", err)
		} else {
			slog.SetTee(f)
			defer f.Close()
		}
	}
	log.T.S(args)
	log.I.F("%s %s starting %d relay(s)", AppName, Version, args.Relays)
	m := app.NewManager(context.Background(), &args)
	var started int
	for _, port := range args.Ports() {
		if _, _, err = m.StartRelay(port); chk.E(err) {
			continue
		}
		started++
	}
	if started == 0 {
		log.F.Ln("no relay could be started")
		os.Exit(1)
	}
	if len(args.Preload) > 0 {
		evs := app.LoadPreloads(args.Preload)
		relays, n := m.Seed(evs)
		log.I.F("seeded %d preload events into each of %d relays", n, relays)
	}
	for _, u := range m.URLs() {
		log.I.Ln("relay ready at", u)
		if args.QR {
			fmt.Println(u)
			qrterminal.GenerateWithConfig(u, qrterminal.Config{
				Level:     qrterminal.L,
				Writer:    os.Stdout,
				WhiteChar: qrterminal.WHITE,
				BlackChar: qrterminal.BLACK,
				QuietZone: 2,
			})
		}
	}
	interrupt.AddHandler(func() {
		if args.ExportFile != "" {
			exportFirst(m, args.ExportFile)
		}
		m.StopAll()
	})
	interrupt.Wait()
	log.I.Ln("all relays stopped")
}

// exportFirst writes the store of the lowest numbered running relay.
func exportFirst(m *app.Manager, filename string) {
	var log, chk = slog.New(os.Stderr)
	for i := 0; i < len(args.Ports()); i++ {
		if store := m.Store(i); store != nil {
			if err := app.Export(store, filename, m.URLs()); chk.E(err) {
				log.E.F("export failed: %v", err)
			}
			return
		}
	}
	log.W.Ln("no running relay to export")
}
