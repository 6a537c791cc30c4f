// cmd/sentra-reduce/main.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"sentra/internal/embed"
	"sentra/internal/reducer"
	"sentra/internal/typed"
)

const version = "0.1.0"

// commandAliases maps short forms to the one subcommand this CLI exposes.
var commandAliases = map[string]string{
	"r": "reduce",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("sentra-reduce", version)
	case "reduce":
		runReduce(args[1:])
	default:
		showUsage()
		os.Exit(1)
	}
}

func runReduce(args []string) {
	var (
		verbose    bool
		debug      bool
		watchAddr  string
		maxIters   int
		cachePath  string
		field      string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--verbose", "-verbose":
			verbose = true
		case "--debug", "-debug":
			debug = true
			verbose = true
		case "--watch", "-watch":
			i++
			if i >= len(args) {
				log.Fatal("reducer: -watch requires an address, e.g. -watch :8787")
			}
			watchAddr = args[i]
		case "--max-iterations", "-max-iterations":
			i++
			if i >= len(args) {
				log.Fatal("reducer: -max-iterations requires a value")
			}
			fmt.Sscanf(args[i], "%d", &maxIters)
		case "--cache", "-cache":
			i++
			if i >= len(args) {
				log.Fatal("reducer: -cache requires a sqlite file path")
			}
			cachePath = args[i]
		case "--field", "-field":
			i++
			if i >= len(args) {
				log.Fatal("reducer: -field requires bn254 or edwards25519")
			}
			field = args[i]
		}
	}

	opts := reducer.Options{MaxIterations: maxIters, Verbose: verbose}

	switch field {
	case "", "bn254":
		opts.FieldModulusBits = embed.BN254FieldModulusBits
	case "edwards25519":
		opts.FieldModulusBits = embed.Edwards25519ScalarFieldBits()
	default:
		log.Fatalf("reducer: unknown -field %q, want bn254 or edwards25519", field)
	}

	if watchAddr != "" {
		srv := reducer.NewTraceServer()
		opts.Watch = srv
		http.HandleFunc("/trace", srv.Handler)
		go func() {
			log.Printf("reducer: trace server listening on %s/trace", watchAddr)
			if err := http.ListenAndServe(watchAddr, nil); err != nil {
				log.Printf("reducer: trace server stopped: %v", err)
			}
		}()
	}

	if cachePath != "" {
		cache, err := reducer.OpenCacheStore(cachePath)
		if err != nil {
			log.Fatalf("reducer: %v", err)
		}
		defer cache.Close()
		opts.Cache = cache
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reducer: reading program: %v", err)
	}

	var program typed.Program
	if err := json.Unmarshal(raw, &program); err != nil {
		log.Fatalf("reducer: decoding program: %v", err)
	}

	reduced, err := reducer.ReduceProgram(&program, opts)
	if err != nil {
		fail(err, debug)
	}

	out, err := json.MarshalIndent(reduced, "", "  ")
	if err != nil {
		log.Fatalf("reducer: encoding result: %v", err)
	}
	fmt.Println(string(out))
}

// fail renders a fatal *reducer.Error: the message to stderr, a stack
// trace under -debug, then exit 1.
func fail(err error, debug bool) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	if debug {
		if re, ok := err.(*reducer.Error); ok {
			if stack := re.Stack(); stack != "" {
				fmt.Fprintln(os.Stderr, stack)
			}
		}
	}
	os.Exit(1)
}

func showUsage() {
	fmt.Println(`sentra-reduce - ZK circuit IR reducer

Usage:
  sentra-reduce reduce [flags] < program.json > reduced.json

Flags:
  -verbose             log one line per fixed-point pass
  -debug                imply -verbose, print a stack trace on fatal errors
  -watch <addr>         serve the PushCallLog/PopCallLog trace over a websocket at <addr>/trace
  -max-iterations <n>   bound the fixed-point loop (default 10000)
  -cache <path>         persist the call cache to a sqlite file at <path>, reused across runs
  -field <name>         field whose bit width sizes the Unpack embed: bn254 (default) or edwards25519

Aliases: r = reduce`)
}
