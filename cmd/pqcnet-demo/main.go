// Command pqcnet-demo exercises the tunnelcore library end to end: it
// spins up a key manager for two parties, runs the PQC handshake between
// them, seals and opens frames over the resulting tunnel, applies a rekey
// and a reroute, and anchors the post-reroute tuple commitment into a DAG
// ledger.
package main

import (
	"flag"
	"fmt"
	"os"

	pkgversion "github.com/pqcnet/tunnelcore/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand()
	case "bench":
		benchCommand()
	case "version":
		fmt.Printf("pqcnet-demo version %s\n", pkgversion.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pqcnet-demo - Post-Quantum Secure Tunnel Demo & Benchmark Tool

USAGE:
    pqcnet-demo <command> [options]

COMMANDS:
    demo      Run the handshake -> tunnel -> anchor pipeline once, with narration
    bench     Run handshake and seal/open throughput benchmarks
    version   Print version information
    help      Show this help message

Run 'pqcnet-demo <command> --help' for more information on a command.

EXAMPLES:
    # Walk through one complete handshake and tunnel lifecycle
    pqcnet-demo demo --verbose

    # Serve Prometheus metrics and health checks while the demo runs
    pqcnet-demo demo --obs-addr :9090

    # Benchmark 200 handshakes and a 10s seal/open throughput run
    pqcnet-demo bench --handshakes 200 --throughput --duration 10s

PROJECT:
    tunnelcore - post-quantum secure-tunnel core library

    Handshake: ML-KEM (512/768/1024) + ML-DSA/Falcon transcript signing
    Tunnel: directional AEAD, route-bound nonces, adaptive reroute
    Anchor: Lamport + temporal-weight DAG ledger with host-delegated persistence`)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Verbose output (show handshake and tunnel internals)")
	obsAddr := fs.String("obs-addr", "", "Observability server address (e.g. :9090). Empty disables it")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")
	boltPath := fs.String("bolt-path", "", "Path to a bbolt file for the anchor host. Empty uses an in-memory host")
	messages := fs.Int("messages", 3, "Number of frames to seal/open over the tunnel")

	fs.Usage = func() {
		fmt.Println(`USAGE: pqcnet-demo demo [options]

Run one complete handshake, open a tunnel, seal and open a few frames,
apply a rekey and a reroute, then anchor the reroute's tuple commitment.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	runDemo(demoOptions{
		verbose:   *verbose,
		obsAddr:   *obsAddr,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		tracing:   *tracing,
		boltPath:  *boltPath,
		messages:  *messages,
	})
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	handshakes := fs.Int("handshakes", 100, "Number of handshakes to benchmark (0 = skip)")
	throughput := fs.Bool("throughput", false, "Run a seal/open throughput benchmark")
	duration := fs.String("duration", "5s", "Duration for the throughput test (e.g., 5s, 1m)")
	frameSize := fs.Int("frame-size", 1200, "Plaintext frame size in bytes for the throughput test")

	fs.Usage = func() {
		fmt.Println(`USAGE: pqcnet-demo bench [options]

Benchmark handshake latency and/or sealed-frame throughput.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*handshakes, *throughput, *duration, *frameSize)
}
