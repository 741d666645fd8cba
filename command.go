package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/MixinNetwork/rworld/rpc"
	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/world"
	"github.com/urfave/cli/v2"
)

// bootWorld applies the --host, --join and --resume flags of the daemon.
func bootWorld(c *cli.Context, w *world.World) error {
	switch {
	case c.IsSet("host"):
		w.StartWorld(c.Int("host"))
	case c.String("join") != "":
		address, port, err := splitWorldAddress(c.String("join"))
		if err != nil {
			return err
		}
		w.JoinWorld(address, port)
	case c.Bool("resume"):
		w.Resume()
	}
	return nil
}

func splitWorldAddress(join string) (string, int, error) {
	host, p, err := net.SplitHostPort(join)
	if err != nil {
		return "", 0, fmt.Errorf("invalid world address %s %v", join, err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid world port %s %v", join, err)
	}
	return host, int(port), nil
}

func startWorldCmd(c *cli.Context) error {
	return printRPC(c, "startworld", []any{c.Int("port")})
}

func stopWorldCmd(c *cli.Context) error {
	return printRPC(c, "stopworld", []any{})
}

func joinWorldCmd(c *cli.Context) error {
	err := printRPC(c, "joinworld", []any{c.String("address"), c.Int("port")})
	if errors.Is(err, session.ErrInvalidStateTransition) {
		return fmt.Errorf("%v, run stopworld before joining another world", err)
	}
	return err
}

func getInfoCmd(c *cli.Context) error {
	return printRPC(c, "getinfo", []any{})
}

func listPeersCmd(c *cli.Context) error {
	return printRPC(c, "listpeers", []any{})
}

func sendMessageCmd(c *cli.Context) error {
	return printRPC(c, "sendmessage", []any{c.String("peer"), c.String("text")})
}

func listEventsCmd(c *cli.Context) error {
	return printRPC(c, "listevents", []any{c.Uint64("since"), c.Uint64("count")})
}

func printRPC(c *cli.Context, method string, params []any) error {
	start := time.Now()
	var data json.RawMessage
	err := rpc.NewClient(c.String("node")).Call(method, params, &data)
	if c.Bool("time") {
		fmt.Printf("%s %s\n", method, time.Since(start))
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
