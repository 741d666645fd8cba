package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MixinNetwork/rworld/config"
	"github.com/MixinNetwork/rworld/logger"
	"github.com/MixinNetwork/rworld/rpc"
	"github.com/MixinNetwork/rworld/storage"
	"github.com/MixinNetwork/rworld/world"
	"github.com/urfave/cli/v2"
)

func main() {
	defaultRPC := os.Getenv("RWORLD_RPC")
	if defaultRPC == "" {
		defaultRPC = fmt.Sprintf("http://127.0.0.1:%d", config.DefaultRPCPort)
	}

	app := cli.NewApp()
	app.Name = "rworld"
	app.Usage = "Host, join and inspect small networked worlds."
	app.Version = config.BuildVersion
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "node",
			Aliases: []string{"n"},
			Value:   defaultRPC,
			Usage:   "the RPC endpoint, and the default value is read from environment variable RWORLD_RPC",
		},
		&cli.BoolFlag{
			Name:  "time",
			Value: false,
			Usage: "print the runtime",
		},
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:    "world",
			Aliases: []string{"w"},
			Usage:   "Start the rWorld daemon",
			Action:  worldCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Usage:   "the data directory with an optional config.toml, events are kept in memory without it",
				},
				&cli.IntFlag{
					Name:    "log",
					Aliases: []string{"l"},
					Value:   logger.INFO,
					Usage:   "the log level",
				},
				&cli.StringFlag{
					Name:  "filter",
					Usage: "the RE2 regex pattern to filter log",
				},
				&cli.IntFlag{
					Name:  "host",
					Usage: "host a world on this `PORT` right after start, 0 for a random port",
				},
				&cli.StringFlag{
					Name:  "join",
					Usage: "join the world at `ADDR:PORT` right after start",
				},
				&cli.BoolFlag{
					Name:  "resume",
					Usage: "host or join the last world recorded in the data directory",
				},
			},
		},
		{
			Name:   "startworld",
			Usage:  "Host a world on the daemon",
			Action: startWorldCmd,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Value:   0,
					Usage:   "the port to listen, 0 for a random one",
				},
			},
		},
		{
			Name:   "stopworld",
			Usage:  "Stop hosting or leave the current world",
			Action: stopWorldCmd,
		},
		{
			Name:   "joinworld",
			Usage:  "Join a remote world",
			Action: joinWorldCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "address",
					Aliases: []string{"a"},
					Usage:   "the world host name or IP",
				},
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Usage:   "the world port",
				},
			},
		},
		{
			Name:   "getinfo",
			Usage:  "Get info from the daemon",
			Action: getInfoCmd,
		},
		{
			Name:   "listpeers",
			Usage:  "List all the connected peers",
			Action: listPeersCmd,
		},
		{
			Name:   "sendmessage",
			Usage:  "Send a text message to a peer or the whole world",
			Action: sendMessageCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "peer",
					Usage: "the peer id, empty to broadcast",
				},
				&cli.StringFlag{
					Name:    "text",
					Aliases: []string{"t"},
					Usage:   "the message text",
				},
			},
		},
		{
			Name:   "listevents",
			Usage:  "List the world events journal",
			Action: listEventsCmd,
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:    "since",
					Aliases: []string{"s"},
					Value:   0,
					Usage:   "the event sequence to begin with",
				},
				&cli.Uint64Flag{
					Name:    "count",
					Aliases: []string{"c"},
					Value:   10,
					Usage:   "the up limit of the returned events",
				},
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

func worldCmd(c *cli.Context) error {
	runtime.GOMAXPROCS(runtime.NumCPU())
	err := os.Setenv("QUIC_GO_DISABLE_GSO", "true")
	if err != nil {
		return err
	}

	dir := c.String("dir")
	custom, err := loadConfig(dir)
	if err != nil {
		return err
	}
	if c.IsSet("log") {
		custom.Log.Level = c.Int("log")
	}
	if f := c.String("filter"); f != "" {
		custom.Log.Filter = f
	}

	store, err := storage.NewBadgerStore(custom.Storage.Dir)
	if err != nil {
		return err
	}

	w, err := world.New(custom, logger.StdSink, store)
	if err != nil {
		store.Close()
		return err
	}
	defer w.Close()

	err = bootWorld(c, w)
	if err != nil {
		return err
	}

	if p := custom.RPC.Port; p > 0 {
		server := rpc.NewServer(w, p)
		defer server.Close()
		go func() {
			err := server.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				panic(err)
			}
		}()
	}

	if p := custom.Dev.Port; p > 0 {
		go func() {
			err := http.ListenAndServe(fmt.Sprintf(":%d", p), http.DefaultServeMux)
			if err != nil {
				panic(err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func loadConfig(dir string) (*config.Custom, error) {
	if dir == "" {
		custom := config.Default()
		custom.RPC.Port = config.DefaultRPCPort
		return custom, nil
	}
	file := dir + "/config.toml"
	if _, err := os.Stat(file); os.IsNotExist(err) {
		custom := config.Default()
		custom.RPC.Port = config.DefaultRPCPort
		custom.Storage.Dir = dir + "/events"
		return custom, nil
	}
	custom, err := config.Initialize(file)
	if err != nil {
		return nil, err
	}
	if custom.Storage.Dir == "" {
		custom.Storage.Dir = dir + "/events"
	}
	return custom, nil
}
