package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"treeradius/internal/config"
	"treeradius/internal/geocode"
	"treeradius/internal/proximity"
	"treeradius/internal/sftrees"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	address := flag.String("address", "", "Address to center the search around.")
	blocks := flag.Int("blocks", 0, "Number of blocks to extend the search radius.")
	blockLength := flag.Float64("block-length", cfg.BlockLengthMeters, "Length in meters of one block.")
	pageSize := flag.Int("page-size", cfg.PageSize, "Dataset rows per request, 100 to 1000.")
	list := flag.Bool("list", false, "Print each matching tree.")
	logging := flag.String("logging", "info", "Log level: debug, info, warn or error.")
	flag.Parse()

	level, err := zerolog.ParseLevel(strings.ToLower(*logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --logging value %q\n", *logging)
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("service", "treeradius").Logger()

	if *pageSize < sftrees.MinPageSize || *pageSize > sftrees.MaxPageSize {
		fmt.Fprintf(os.Stderr, "--page-size must be between %d and %d, got %d\n",
			sftrees.MinPageSize, sftrees.MaxPageSize, *pageSize)
		os.Exit(2)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	counter := &proximity.Counter{
		Resolver: &geocode.Client{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			Timeout:   timeout,
		},
		Trees: &sftrees.Client{
			BaseURL:  cfg.DatasetURL,
			PageSize: *pageSize,
			Timeout:  timeout,
		},
		BlockLength: *blockLength,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := counter.Run(ctx, *address, *blocks)
	if err != nil {
		exitWithError(err)
	}

	fmt.Printf("There are %d trees within a %gm radius.\n", len(result.Matches), result.RadiusMeters)
	fmt.Printf("Where the radius consists of %d blocks of length %gm.\n", *blocks, *blockLength)
	fmt.Printf("Centered around address: %s\n", *address)
	if *list {
		for _, m := range result.Matches {
			fmt.Printf("%8d  %8.1fm  %-45s  %s\n", m.Tree.ID, m.DistanceMeters, m.Tree.Species, m.Tree.Address)
		}
	}
}

func exitWithError(err error) {
	var inputErr *proximity.InputError
	var resErr *geocode.ResolutionError
	var srcErr *sftrees.SourceError

	switch {
	case errors.As(err, &inputErr):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case errors.As(err, &resErr):
		log.Error().Err(err).Msg("address resolution failed")
	case errors.As(err, &srcErr):
		log.Error().Err(err).Msg("tree dataset fetch failed")
	default:
		log.Error().Err(err).Msg("search failed")
	}
	os.Exit(1)
}
