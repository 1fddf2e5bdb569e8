package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jarvis-ctl [--socket path] pause|resume|status")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdStatus
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	reply, err := ipc.SendCommand(*socket, cmd)
	if err != nil {
		fmt.Println("jarvis not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	fmt.Println(reply.State)
}
