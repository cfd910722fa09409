// Package main: faucet service.
//
// The service drips the native currency of the configured network to the addresses requested through its RESTful
// API. See cmd/conf.json for a sample configuration; any value can be overridden with FAUCET_* OS ENV variables, which
// are also read from a .env file in the working directory.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tarancss/faucet/api"
	"github.com/tarancss/faucet/dripper"
	"github.com/tarancss/faucet/lib/block"
	"github.com/tarancss/faucet/lib/captcha"
	"github.com/tarancss/faucet/lib/config"
	"github.com/tarancss/faucet/lib/metrics"
	"github.com/tarancss/faucet/lib/msg"
	"github.com/tarancss/faucet/lib/msg/amqp"
	"github.com/tarancss/faucet/lib/network"
	"github.com/tarancss/faucet/lib/queue"
	"github.com/tarancss/faucet/lib/store"
	"github.com/tarancss/faucet/lib/store/db"
)

var log = logging.Logger("faucet")

// shutdownTimeout bounds the wait for requests in flight at termination.
const shutdownTimeout = 90 * time.Second

func main() {
	// get command line flags
	confPath := pflag.StringP("config", "c", "", "get configuration from json file")
	monitor := pflag.BoolP("monitor", "m", false, "serve Prometheus metrics on :9100/metrics")
	watch := pflag.BoolP("watch", "w", false, "log the drip events published on the message broker")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %s", err)
	}

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		log.Fatal(err)
	}

	if lvl, err := logging.LevelFromString(conf.LogLevel); err == nil {
		logging.SetAllLoggers(lvl)
	} else {
		log.Warnf("Invalid log level %q: %s", conf.LogLevel, err)
	}

	// the network is selected once, an unknown one is fatal
	net, err := network.Get(conf.Network)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Serving network %s (%s)", net.NetworkName, net.Currency)

	dial, err := block.Init(net, conf.RPC)
	if err != nil {
		log.Fatal(err)
	}

	conn := block.NewConn(dial)

	// connect to database
	dbConn, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Connected to %s database", conf.DBType)

	// connect to retry queue
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := queue.New(ctx, conf.QueueType, conf.QueueConn)
	if err != nil {
		log.Fatal(err)
	}

	// purge past drips daily
	go dripper.Purge(ctx, net, dbConn, nil)

	// load message broker
	mb := broker(conf)

	if *watch && mb != nil {
		go func() {
			err := dripper.FollowDrips(ctx, mb, net.NetworkName, func(e msg.DripEvent) {
				log.Infof("[%s] Drip event: %s %s to %s (%s) hash %s", e.Net, net.Format(amountOf(e)), net.Currency,
					e.Addr, e.Username, e.Hash)
			})
			if err != nil && ctx.Err() == nil {
				log.Errorf("Error following drip events: %s", err)
			}
		}()
	}

	// load Prometheus monitor
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if *monitor {
		go func() {
			log.Info("Serving metrics API")

			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			if err := http.ListenAndServe(":9100", h); err != nil {
				log.Errorf("Metrics API: %s", err)
			}
		}()
	}

	// load faucet accounts and start the balance refresh
	acc := dripper.NewAccounts(net, conn, m, nil)

	primary, backup, err := dripper.LoadAccounts(conf.Seed, conf.Primary, conf.Backup)
	if err != nil {
		log.Fatal(err)
	}

	if err = acc.SetCredentials(primary, backup); err != nil {
		log.Fatal(err)
	}

	go acc.Run(ctx)

	disp := dripper.NewDispatcher(net, conn, acc, q, dripper.WithSettle(time.Duration(conf.SettleSecs)*time.Second))
	h := dripper.NewHandler(net, disp, acc, dbConn, captcha.New(conf.RecaptchaSecret, ""),
		dripper.AllowList(conf.Privileged), mb, m)
	a := api.New(net, h, acc, conf.BotToken)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan struct{})

	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Info("Program killed !")

		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()

		// do last actions and wait for all write operations to end
		a.Stop(sctx)
		cancel()
		h.Wait()
		disp.Wait()

		if err := closeAll(conf, conn, dbConn, q, mb); err != nil {
			log.Errorf("Error closing connections: %s", err)
		}

		close(finish)
	}()

	// init RESTful API, wait for its return and log response
	log.Infof("Faucet: %s", a.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}

// amountOf returns the amount of a drip event, nil if it cannot be parsed.
func amountOf(e msg.DripEvent) *big.Int {
	amt, ok := new(big.Int).SetString(e.Amount, 10)
	if !ok {
		return nil
	}

	return amt
}

// broker returns the configured message broker, or nil when none is.
func broker(conf config.ServiceConfig) msg.MsgBroker {
	switch conf.MbType {
	case "amqp":
		mb, err := amqp.New(conf.MbConn)
		if err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				log.Fatal(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			log.Fatal(err)
		}

		return mb
	case "":
		log.Info("No message broker configured, drip events are not published")
	default:
		log.Warnf("Unknown message broker type: %s", conf.MbType)
	}

	return nil
}

func closeAll(conf config.ServiceConfig, conn *block.Conn, dbConn store.DB, q queue.Queue,
	mb msg.MsgBroker) error {
	var errs error

	conn.Close()

	if err := db.Close(conf.DBType, dbConn); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing %s database: %w", conf.DBType, err))
	}

	if err := q.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing %s queue: %w", conf.QueueType, err))
	}

	if mb != nil {
		if err := mb.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing message broker: %w", err))
		}
	}

	return errs
}
