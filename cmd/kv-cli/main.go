package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/loganszeto/respkv/internal/config"
	"github.com/loganszeto/respkv/internal/protocol"
)

func main() {
	app := &cli.App{
		Name:      "kv-cli",
		Usage:     "send commands to a RESP key-value server",
		ArgsUsage: "[command [arg...]]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "server address",
				EnvVars: []string{"RESPKV_ADDR"},
				Value:   config.DefaultAddr,
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kv-cli:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conn, err := net.Dial("tcp", c.String("addr"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if c.NArg() > 0 {
		reply, err := roundTrip(conn, reader, c.Args().Slice())
		if err != nil {
			return err
		}
		fmt.Println(protocol.Format(reply))
		return nil
	}

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if strings.EqualFold(args[0], "QUIT") || strings.EqualFold(args[0], "EXIT") {
			return nil
		}
		reply, err := roundTrip(conn, reader, args)
		if err != nil {
			return err
		}
		fmt.Println(protocol.Format(reply))
	}
}

func roundTrip(conn net.Conn, r *bufio.Reader, args []string) (protocol.Value, error) {
	if _, err := conn.Write(protocol.EncodeCommand(args...)); err != nil {
		return protocol.Value{}, fmt.Errorf("send: %w", err)
	}
	reply, err := protocol.ReadReply(r)
	if err != nil {
		return protocol.Value{}, fmt.Errorf("read: %w", err)
	}
	return reply, nil
}
