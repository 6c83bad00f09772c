// Command loadsim hammers one flight with concurrent bookers and checks that
// no seat was sold twice.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/internal/logger"
)

func main() {
	var opts options
	flag.IntVar(&opts.Buyers, "buyers", 500, "concurrent booking attempts")
	flag.IntVar(&opts.Seats, "seats", 100, "seats on the flight")
	flag.Int64Var(&opts.DeclineEvery, "decline-every", 7, "decline every n-th charge, 0 never")
	flag.DurationVar(&opts.Latency, "latency", 20*time.Millisecond, "payment gateway latency")
	flag.BoolVar(&opts.Guard, "guard", false, "front the seat store with a Redis lock (in-process miniredis)")
	flag.StringVar(&opts.LedgerDSN, "ledger", ":memory:", "SQLite DSN of the ticket ledger")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(config.LogConfig{Level: *level, Format: "text"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := simulate(ctx, opts, log)
	if err != nil {
		log.Fatalf("simulation: %v", err)
	}
	rep.log(log)
	if rep.DoubleSold > 0 || rep.Tickets != rep.Booked {
		os.Exit(1)
	}
}
