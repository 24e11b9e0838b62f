package main

import (
	"flag"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jihun-kang/orbisync-node/internal/hubsim"
)

func main() {
	addr := flag.String("addr", ":8088", "listen address")
	slot := flag.String("pair-slot", "", "if set, slot that should receive a pairing code on hello")
	pairingCode := flag.String("pairing-code", "ABC123", "pairing code issued to --pair-slot")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	srv := hubsim.New()
	if *slot != "" {
		srv.SetPolicy(*slot, hubsim.SlotPolicy{Mode: "pair", PairingCode: *pairingCode})
	}

	log.Info().Str("addr", *addr).Msg("hubsim: listening")
	if err := http.ListenAndServe(*addr, srv); err != nil {
		log.Fatal().Err(err).Msg("hubsim: serve failed")
	}
}
