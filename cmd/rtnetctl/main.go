// Command rtnetctl is an interactive shell and one-shot CLI for
// driving a rtnet-go stack instance over a host loopback link.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rtnet-go/internal/platform/hostloop"
	"rtnet-go/internal/stack"
	"rtnet-go/internal/wire"
)

var (
	ctx      *stack.Context
	platform *hostloop.Platform
	log      = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "rtnetctl",
	Short: "Interactive control shell for a rtnet-go stack instance",
	Run: func(cmd *cobra.Command, args []string) {
		startInteractiveShell()
	},
}

var loadCmd = &cobra.Command{
	Use:   "load [scenario.yaml]",
	Short: "Initialize the stack from a scenario file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := stack.LoadScenario(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := cfg.Apply(ctx); err != nil {
			fmt.Printf("Error applying scenario: %v\n", err)
			return
		}
		fmt.Printf("Loaded scenario for node %q (%s)\n", cfg.Node.Name, cfg.Node.Address)
	},
}

var showCmd = &cobra.Command{Use: "show", Short: "Show stack state"}

var showStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics counters",
	Run: func(cmd *cobra.Command, args []string) {
		s := ctx.GetStatistics()
		fmt.Printf("rx_packets=%d tx_packets=%d rx_errors=%d tx_errors=%d\n", s.RxPackets, s.TxPackets, s.RxErrors, s.TxErrors)
		fmt.Printf("rx_dropped=%d tx_dropped=%d checksum_errors=%d routing_errors=%d\n", s.RxDropped, s.TxDropped, s.ChecksumErrors, s.RoutingErrors)
	},
}

var showRouteCmd = &cobra.Command{
	Use:   "route",
	Short: "Show the routing table",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range ctx.RouteSnapshot() {
			nextHop := "direct"
			if r.HasNextHop {
				nextHop = r.NextHop.String()
			}
			fmt.Printf("%s/%d via %s metric %d\n", r.Destination.String(), r.PrefixLen, nextHop, r.Metric)
		}
	},
}

var showNeighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Show the neighbor cache",
	Run: func(cmd *cobra.Command, args []string) {
		for _, e := range ctx.NeighborSnapshot() {
			fmt.Printf("%s -> %s\n", e.Addr.String(), e.MAC.String())
		}
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick [count]",
	Short: "Run the periodic maintenance task",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		count := 1
		if len(args) == 1 {
			count, _ = strconv.Atoi(args[0])
		}
		for i := 0; i < count; i++ {
			ctx.PeriodicTask()
		}
		fmt.Printf("ran %d tick(s)\n", count)
	},
}

var udpCmd = &cobra.Command{Use: "udp", Short: "UDP operations"}

var udpSendCmd = &cobra.Command{
	Use:   "send [dest] [port] [text]",
	Short: "Send a UDP datagram",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		dst, err := wire.ParseIPv6(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		port, _ := strconv.Atoi(args[1])
		if err := ctx.UDPSend(dst, uint16(port), 0, []byte(args[2]), 2); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("sent")
	},
}

var tcpCmd = &cobra.Command{Use: "tcp", Short: "TCP-Lite operations"}

var tcpConnectCmd = &cobra.Command{
	Use:   "connect [dest] [port]",
	Short: "Open a TCP-Lite connection",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		dst, err := wire.ParseIPv6(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		port, _ := strconv.Atoi(args[1])
		handle, err := ctx.TCPConnect(dst, uint16(port))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("handle=%d\n", handle)
	},
}

var tcpSendCmd = &cobra.Command{
	Use:   "send [handle] [text]",
	Short: "Send data on a TCP-Lite connection",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		handle, _ := strconv.Atoi(args[0])
		if err := ctx.TCPSend(handle, []byte(args[1])); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("queued")
	},
}

var tcpCloseCmd = &cobra.Command{
	Use:   "close [handle]",
	Short: "Close a TCP-Lite connection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handle, _ := strconv.Atoi(args[0])
		if err := ctx.TCPClose(handle); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("closing")
	},
}

var mdnsCmd = &cobra.Command{Use: "mdns", Short: "mDNS service discovery"}

var mdnsQueryCmd = &cobra.Command{
	Use:   "query [name]",
	Short: "Query the mDNS cache",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rec, err := ctx.MDNSQuery(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%s -> %s:%d (ttl_ms=%d)\n", rec.Name, rec.Addr.String(), rec.Port, rec.TTLMs)
	},
}

var mdnsAnnounceCmd = &cobra.Command{
	Use:   "announce [name] [port] [ttl_sec]",
	Short: "Announce a local service",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := strconv.Atoi(args[1])
		ttl, _ := strconv.Atoi(args[2])
		if err := ctx.MDNSAnnounce(args[0], uint16(port), uint32(ttl)); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("announced")
	},
}

var routeCmd = &cobra.Command{Use: "route", Short: "Routing table operations"}

var routeAddCmd = &cobra.Command{
	Use:   "add [dest] [prefix_len] [metric]",
	Short: "Add a directly-connected route",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		dest, err := wire.ParseIPv6(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		prefixLen, _ := strconv.Atoi(args[1])
		metric, _ := strconv.Atoi(args[2])
		if err := ctx.AddRoute(dest, uint8(prefixLen), nil, uint16(metric)); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("route added")
	},
}

func startInteractiveShell() {
	username := os.Getenv("USER")
	if username == "" {
		username = "user"
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := os.Getenv("HOME") + "/.rtnetctl_history"
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Println("rtnet-go interactive control shell")
	fmt.Println("Type 'help' for available commands or 'exit' to quit.")

	for {
		input, err := line.Prompt(username + "@rtnet> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println("\nUse 'exit' to quit")
				continue
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "exit" || input == "quit" {
			break
		}

		executeCommand(input)
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func executeCommand(input string) {
	args := strings.Fields(input)
	if len(args) == 0 {
		return
	}

	cmd := &cobra.Command{Use: "rtnetctl"}
	cmd.AddCommand(loadCmd, showCmd, udpCmd, tcpCmd, mdnsCmd, routeCmd, tickCmd)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func init() {
	showCmd.AddCommand(showStatsCmd, showRouteCmd, showNeighborsCmd)
	udpCmd.AddCommand(udpSendCmd)
	tcpCmd.AddCommand(tcpConnectCmd, tcpSendCmd, tcpCloseCmd)
	mdnsCmd.AddCommand(mdnsQueryCmd, mdnsAnnounceCmd)
	routeCmd.AddCommand(routeAddCmd)

	rootCmd.AddCommand(loadCmd, showCmd, udpCmd, tcpCmd, mdnsCmd, routeCmd, tickCmd)
}

func main() {
	p, err := hostloop.New(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start platform loopback: %v\n", err)
		os.Exit(1)
	}
	platform = p
	ctx = stack.NewContext(platform, log)

	setupSignalHandler()

	if err := rootCmd.Execute(); err != nil {
		cleanup()
		os.Exit(1)
	}
	cleanup()
}

func setupSignalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal. Cleaning up...")
		cleanup()
		os.Exit(0)
	}()
}

func cleanup() {
	if platform != nil {
		platform.Close()
	}
}
