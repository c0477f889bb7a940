package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pqcnet/tunnelcore/internal/constants"
	"github.com/pqcnet/tunnelcore/pkg/handshake"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
	"github.com/pqcnet/tunnelcore/pkg/tunnel"
)

func runBench(handshakes int, throughputTest bool, durationStr string, frameSize int) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      pqcnet Benchmark                                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if handshakes == 0 && !throughputTest {
		fmt.Println("No benchmarks specified. Use --handshakes or --throughput")
		fmt.Println("Run 'pqcnet-demo bench --help' for usage")
		os.Exit(1)
	}

	if handshakes > 0 {
		benchHandshakes(handshakes)
		fmt.Println()
	}

	if throughputTest {
		duration, err := time.ParseDuration(durationStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid duration: %s\n", durationStr)
			os.Exit(1)
		}
		benchThroughput(duration, frameSize)
	}
}

func benchHandshakes(count int) {
	fmt.Printf("Benchmarking handshakes (%d iterations)\n", count)
	fmt.Println(strings.Repeat("-", 60))

	initiatorMgr, responderMgr := buildKeyManagers()
	plan := tunnel.RoutePlan{Topic: "bench", Epoch: 0, Hops: []string{"edge-a"}, Class: tunnel.QoSLowLatency}
	routeHash := plan.RouteHash()

	durations := make([]time.Duration, count)
	errs := 0

	for i := 0; i < count; i++ {
		start := time.Now()
		if err := runOneHandshake(initiatorMgr, responderMgr, routeHash, plan.Epoch); err != nil {
			errs++
			continue
		}
		durations[i] = time.Since(start)

		step := count / 10
		if step == 0 {
			step = 1
		}
		if (i+1)%step == 0 || i == count-1 {
			fmt.Printf("Progress: %d/%d (%.0f%%)\r", i+1, count, float64(i+1)/float64(count)*100)
		}
	}
	fmt.Println()

	printHandshakeResults(count, count-errs, errs, durations)
}

func runOneHandshake(initiatorMgr, responderMgr *keymanager.Manager, routeHash [32]byte, routeEpoch uint64) error {
	respKEMRecord, _, err := responderMgr.ActiveKEM()
	if err != nil {
		return err
	}
	initSignRecord, initSignEngine, err := initiatorMgr.ActiveSigning()
	if err != nil {
		return err
	}

	init, sharedSecret, err := handshake.InitHandshake(
		respKEMRecord.PublicKey, respKEMRecord.Scheme, respKEMRecord.ID,
		initSignRecord, initSignEngine, routeHash, []byte("bench"),
	)
	if err != nil {
		return err
	}

	respSignRecord, respSignEngine, err := responderMgr.ActiveSigning()
	if err != nil {
		return err
	}
	env, _, err := handshake.RespondHandshake(init, responderMgr, respSignRecord, respSignEngine, routeEpoch)
	if err != nil {
		return err
	}

	_, err = handshake.CompleteInitiator(init, sharedSecret, env, routeEpoch)
	return err
}

func printHandshakeResults(total, successful, failed int, durations []time.Duration) {
	if failed == total {
		fmt.Fprintln(os.Stderr, "All handshakes failed")
		os.Exit(1)
	}

	var sum, min, max time.Duration
	min = time.Hour

	for _, d := range durations {
		if d == 0 {
			continue
		}
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	avg := sum / time.Duration(successful)

	fmt.Println("\nResults:")
	fmt.Printf("  Total handshakes: %d\n", total)
	fmt.Printf("  Successful: %d\n", successful)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Println()
	fmt.Println("Handshake performance:")
	fmt.Printf("  Average: %v\n", avg)
	fmt.Printf("  Minimum: %v\n", min)
	fmt.Printf("  Maximum: %v\n", max)
	fmt.Println()

	printHandshakeRating(avg)
}

func printHandshakeRating(avg time.Duration) {
	switch {
	case avg < 2*time.Millisecond:
		fmt.Println("Performance: excellent (< 2ms avg)")
	case avg < 5*time.Millisecond:
		fmt.Println("Performance: good (< 5ms avg)")
	case avg < 10*time.Millisecond:
		fmt.Println("Performance: acceptable (< 10ms avg)")
	default:
		fmt.Println("Performance: slow (> 10ms avg)")
	}
}

func benchThroughput(duration time.Duration, frameSize int) {
	fmt.Printf("Benchmarking seal/open throughput\n")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Frame size: %d bytes, duration: %v\n\n", frameSize, duration)

	initT, respT := buildBenchTunnelPair()
	defer initT.Close()
	defer respT.Close()

	plaintext := make([]byte, frameSize)
	for i := range plaintext {
		plaintext[i] = byte(i % 256)
	}
	topic := []byte("bench")

	var sealed, opened int64
	start := time.Now()
	for time.Since(start) < duration {
		frame, err := initT.Seal(plaintext, topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Seal error: %v\n", err)
			break
		}
		sealed++

		if _, err := respT.Open(frame); err != nil {
			fmt.Fprintf(os.Stderr, "Open error: %v\n", err)
			break
		}
		opened++
	}
	elapsed := time.Since(start)

	totalBytes := sealed * int64(frameSize)
	mbps := float64(totalBytes) / elapsed.Seconds() / 1024 / 1024

	fmt.Println("Results:")
	fmt.Printf("  Frames sealed: %d\n", sealed)
	fmt.Printf("  Frames opened: %d\n", opened)
	fmt.Printf("  Elapsed: %v\n", elapsed)
	fmt.Printf("  Throughput: %.2f MB/s (%.0f frames/sec)\n", mbps, float64(sealed)/elapsed.Seconds())
}

func buildBenchTunnelPair() (*tunnel.Tunnel, *tunnel.Tunnel) {
	initiatorMgr, responderMgr := buildKeyManagers()
	plan := tunnel.RoutePlan{Topic: "bench", Epoch: 0, Hops: []string{"edge-a"}, Class: tunnel.QoSLowLatency}
	routeHash := plan.RouteHash()

	respKEMRecord, _, err := responderMgr.ActiveKEM()
	must(err, "ActiveKEM")
	initSignRecord, initSignEngine, err := initiatorMgr.ActiveSigning()
	must(err, "ActiveSigning")

	init, sharedSecret, err := handshake.InitHandshake(
		respKEMRecord.PublicKey, respKEMRecord.Scheme, respKEMRecord.ID,
		initSignRecord, initSignEngine, routeHash, []byte("bench"),
	)
	must(err, "InitHandshake")

	respSignRecord, respSignEngine, err := responderMgr.ActiveSigning()
	must(err, "ActiveSigning")
	env, respMaterial, err := handshake.RespondHandshake(init, responderMgr, respSignRecord, respSignEngine, plan.Epoch)
	must(err, "RespondHandshake")

	initMaterial, err := handshake.CompleteInitiator(init, sharedSecret, env, plan.Epoch)
	must(err, "CompleteInitiator")

	tunnelID := tunnel.ComputeTunnelID(init.Ciphertext, env.Signature, routeHash)

	initT, err := tunnel.New(tunnel.Config{
		TunnelID: tunnelID, Plan: plan, Material: initMaterial, MasterSecret: sharedSecret,
		AsResponder: false, Suite: constants.CipherSuiteAES256GCM,
	})
	must(err, "tunnel.New (initiator)")

	respT, err := tunnel.New(tunnel.Config{
		TunnelID: tunnelID, Plan: plan, Material: respMaterial, MasterSecret: sharedSecret,
		AsResponder: true, Suite: constants.CipherSuiteAES256GCM,
	})
	must(err, "tunnel.New (responder)")

	return initT, respT
}
