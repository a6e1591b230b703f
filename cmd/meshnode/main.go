package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"meshsentinel/internal/cluster"
	"meshsentinel/internal/httpapi"
	"meshsentinel/pkg/logger"
	"meshsentinel/pkg/mesh"
)

const (
	defaultTCPPort       = 5555
	defaultDiscoveryPort = 5556
	defaultHTTPPort      = 5000
	defaultPeerTimeout   = 30 // seconds
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		tcpPort       int
		discoveryPort int
		httpPort      int
		peerTimeout   int
		debug         bool
		logFile       string
	)

	cmd := &cobra.Command{
		Use:   "meshnode",
		Short: "Run a MeshSentinel community safety alert mesh node",
		Long: "meshnode starts the gossip mesh node: peer discovery, the flood-and-dedupe\n" +
			"event protocol, and the HTTP surface a dashboard talks to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(tcpPort, discoveryPort, httpPort, peerTimeout, debug, logFile)
		},
	}

	cmd.Flags().IntVar(&tcpPort, "tcp-port", defaultTCPPort, "TCP port for the gossip transport")
	cmd.Flags().IntVar(&discoveryPort, "discovery-port", defaultDiscoveryPort, "UDP port for peer discovery")
	cmd.Flags().IntVar(&httpPort, "http-port", defaultHTTPPort, "HTTP port for the dashboard surface")
	cmd.Flags().IntVar(&peerTimeout, "peer-timeout", defaultPeerTimeout, "seconds before an unseen peer is evicted")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	return cmd
}

func run(tcpPort, discoveryPort, httpPort, peerTimeout int, debug bool, logFile string) error {
	if logFile != "" {
		if err := logger.ToFile(logFile); err != nil {
			logger.Warn("failed to open log file %s, logging to stderr: %v", logFile, err)
		}
	}
	if !debug {
		logger.SetLevelInfo()
	}

	node := mesh.NewNode(mesh.Config{
		TCPPort:       tcpPort,
		DiscoveryPort: discoveryPort,
		HTTPPort:      httpPort,
		PeerTimeout:   peerTimeout,
	})
	node.Start()
	defer node.Stop()

	collab := cluster.New(os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_PORT"), os.Getenv("OLLAMA_MODEL"))

	server := &httpapi.Server{
		DeviceID: node.DeviceID,
		Events:   node.Events,
		Registry: node.Registry,
		Scanner:  node.Keepalive,
		Cluster:  collab,
	}

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(httpPort))
	return httpapi.ListenAndServe(addr, server)
}
