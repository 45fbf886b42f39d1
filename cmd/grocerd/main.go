/*
Grocerd starts the grocery-management REST server.

Usage:

	grocerd [flags]

Once started, the server will listen for HTTP requests and respond to them as
configured. The grocery API is mounted at /api under the server's URI base:

  - /api - reports that the API is running
  - /api/test-db - checks the database connection and reports its version
  - /api/customers, /api/products, /api/suppliers, /api/employees,
    /api/invoices, /api/purchase-orders, /api/order-details - the CRUD
    resources, each with GET and POST on the collection, GET /count, and GET,
    PUT, and DELETE on /{id}

If the config file does not exist and was not given explicitly, the server
runs with defaults: a SQLite database in ./data, listening on localhost:8000.
The GROCER_DB_HOST, GROCER_DB_PORT, GROCER_DB_NAME, GROCER_DB_USER, and
GROCER_DB_PASSWORD environment variables override the database settings in
either case.

The flags are:

	-c, --config PATH
		Use the given file for the configuration instead of './grocer.yml'. The
		file must be in JSON, YAML, or TOML format.

	--db CONN_STRING
		Use the given database instead of the one in the config. CONN_STRING
		is in the form "engine:params", for example "sqlite:./data" or
		"postgres:host=localhost,name=grocery,user=grocer,password=secret".

	-l, --listen ADDR:PORT
		Listen on the given address instead of the one in the config.

	--routes
		Print the routes the server would serve and exit.

	--dump-config
		Print the configuration the server would run with, after defaults and
		overrides are applied, and exit without connecting to the database.
		The output uses the format of the loaded config file, or YAML if there
		was none.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/grocery"
	"github.com/dekarrin/grocer/server"
	"github.com/dekarrin/jellog"
	"github.com/spf13/pflag"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitPanic     = 2
	exitInterrupt = 3
)

var exitCode = exitSuccess

var (
	flagConf   = pflag.StringP("config", "c", "grocer.yml", "Path to configuration file")
	flagDB     = pflag.String("db", "", "Database connection string, overriding the config")
	flagListen = pflag.StringP("listen", "l", "", "Address and port to listen on, overriding the config")
	flagRoutes = pflag.Bool("routes", false, "Print the route index and exit")
	flagDump   = pflag.Bool("dump-config", false, "Print the effective configuration and exit")
)

// shutdownGrace is how long in-flight requests get to finish on interrupt.
const shutdownGrace = 30 * time.Second

func main() {
	ctx, cancelMainContext := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalChan)
		cancelMainContext()
	}()
	// listen for signals
	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			cancelMainContext()
		case <-ctx.Done():
		}

		<-signalChan // second signal, hard exit
		os.Exit(exitInterrupt)
	}()

	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	pflag.Parse()

	stdErrOutput := jellog.NewStderrHandler(nil)
	logger := jellog.New(jellog.Defaults[string]().
		WithComponent("grocerd"))
	logger.AddHandler(jellog.LvInfo, stdErrOutput)

	conf, err := loadConfig(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	if *flagDump {
		os.Stdout.Write(server.DumpConfig(conf.FillDefaults()))
		return
	}

	srv, err := server.New(&conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	if err := srv.Add("grocery", "/api", &grocery.API{}); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	if *flagRoutes {
		fmt.Println(srv.RoutesIndex())
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(closeCtx)
		return
	}

	actual := srv.Config()
	logger.Infof("Starting server on %s:%d with %s DB...", actual.Globals.Address, actual.Globals.Port, actual.DB.Type)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ServeForever()
	}()

	logger.Info("Grocer server started; Ctrl-C (SIGINT) to stop")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Server encountered a problem: %v", err)
			exitCode = exitError
		}
	case <-ctx.Done():
		// ctrl-C likes to write "^C" or similar in some console output, so
		// insert a break right after that.
		logger.InsertBreak(jellog.LvAll)

		logger.Info("Interrupt received; cleaning up server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(err.Error())
		}
		<-serveErr
		logger.Info("Server shutdown complete")
	}
}

// loadConfig reads the config file, falling back to the environment alone if
// the default file is absent, and then applies the command-line overrides.
func loadConfig(logger jellog.Logger[string]) (grocer.Config, error) {
	var conf grocer.Config
	var err error

	if _, statErr := os.Stat(*flagConf); statErr == nil || pflag.CommandLine.Changed("config") {
		logger.Infof("Loading config file %s...", *flagConf)
		conf, err = server.LoadConfig(*flagConf)
	} else {
		logger.Infof("No config file at %s; using defaults", *flagConf)
		conf, err = server.EnvConfig()
		conf.Log.Enabled = true
	}
	if err != nil {
		return conf, err
	}

	if *flagDB != "" {
		db, err := grocer.ParseDBConnString(*flagDB)
		if err != nil {
			return conf, fmt.Errorf("--db: %w", err)
		}
		db.MaxConns = conf.DB.MaxConns
		db.MaxIdleConns = conf.DB.MaxIdleConns
		db.ConnMaxLifetime = conf.DB.ConnMaxLifetime
		conf.DB = db
	}

	if *flagListen != "" {
		host, portStr, err := net.SplitHostPort(*flagListen)
		if err != nil {
			return conf, fmt.Errorf("--listen: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return conf, fmt.Errorf("--listen: %q is not a valid port number", portStr)
		}
		conf.Globals.Address = host
		conf.Globals.Port = port
	}

	return conf, nil
}
