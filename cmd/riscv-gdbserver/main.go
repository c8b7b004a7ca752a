// Command riscv-gdbserver serves the GDB Remote Serial Protocol against a
// simulated RISC-V core, over either a TCP listener or stdin/stdout.
// Grounded on original_source/server/main.cpp's flag surface, reproduced
// here as a cobra command tree the way golang-debug/cmd/viewcore/objref.go
// wires cobra for a debug-tooling CLI.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/T-J-Teru/riscv-gdbserver/gdbserver"
	"github.com/T-J-Teru/riscv-gdbserver/simriscv"
	"github.com/T-J-Teru/riscv-gdbserver/trace"
)

const serverName = "riscv-gdbserver"
const serverVersion = "0.1"

type options struct {
	core        string
	traces      []string
	silent      bool
	fromStdin   bool
	xlen        int
	showVersion bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           serverName + " --core <corename> [flags] <rsp-port>",
		Short:         "Serve the GDB Remote Serial Protocol against a simulated RISC-V core",
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Printf("%s version %s\n", serverName, serverVersion)
				return nil
			}
			return run(opts, args)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.core, "core", "c", "", "CPU model to serve (gdbsim)")
	flags.StringArrayVarP(&opts.traces, "trace", "t", nil, "trace flag to enable (repeatable): rsp, conn, break, vcd, silent")
	flags.BoolVarP(&opts.silent, "silent", "q", false, "minimize informative messages")
	flags.BoolVarP(&opts.fromStdin, "stdin", "s", false, "serve over stdin/stdout instead of a TCP port")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "print version and exit")
	flags.IntVar(&opts.xlen, "xlen", 32, "register width in bits (32 or 64)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *options, args []string) error {
	if opts.core == "" {
		return fmt.Errorf("--core is required")
	}
	if !opts.fromStdin && len(args) != 1 {
		return fmt.Errorf("expected exactly one positional <rsp-port> argument unless --stdin is given")
	}
	if opts.xlen != 32 && opts.xlen != 64 {
		return fmt.Errorf("--xlen must be 32 or 64")
	}

	flags := trace.NewFlags()
	if opts.silent {
		flags.Set(trace.Silent)
	}
	for _, t := range opts.traces {
		flag, err := trace.ParseFlag(t)
		if err != nil {
			return err
		}
		flags.Set(flag)
	}
	log := trace.NewLogger(flags)

	iss, err := createCore(opts.core, opts.xlen)
	if err != nil {
		return err
	}

	if opts.fromStdin {
		backend := simriscv.NewSimBackend(iss, log, opts.core)
		defer backend.Close()
		engine := gdbserver.NewEngine(stdioStream{}, backend, gdbserver.ExitOnKill, log)
		return engine.Run(context.Background())
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad rsp-port %q: %w", args[0], err)
	}
	return serveTCP(port, iss, opts.core, log)
}

// createCore maps a --core name to an ISS, mirroring
// original_source/server/main.cpp's createCpu() name switch. gdbsim is the
// only core this port implements; PicoRV32 and RI5CY are named in the
// original but each wraps a third-party RTL model this repo has no
// equivalent for.
func createCore(name string, xlen int) (simriscv.ISS, error) {
	switch normalizeCoreName(name) {
	case "gdbsim":
		return simriscv.NewInstrInterp(xlen), nil
	default:
		return nil, fmt.Errorf("unrecognized core: %s", name)
	}
}

func normalizeCoreName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// serveTCP accepts connections on port, one at a time. One backend serves
// every session and is not reset when a session ends; a 'k' resets it
// (spec.md §4.6's RESET_ON_KILL behavior for the TCP transport, matching
// original_source/server/main.cpp's RspConnection wiring).
func serveTCP(port int, iss simriscv.ISS, coreName string, log *trace.Logger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Infof("listening on port %d", port)

	backend := simriscv.NewSimBackend(iss, log, coreName)
	defer backend.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		log.Tracef(trace.Conn, "accepted connection from %s", conn.RemoteAddr())
		engine := gdbserver.NewEngine(conn, backend, gdbserver.ResetOnKill, log.For(conn.RemoteAddr().String()))
		if err := engine.Run(context.Background()); err != nil {
			log.Errorf("session ended: %v", err)
		}
		conn.Close()
	}
}

// stdioStream adapts os.Stdin/os.Stdout to gdbserver.ByteStream, for the
// --stdin transport (original_source/server/main.cpp's StreamConnection).
type stdioStream struct{}

func (stdioStream) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioStream) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
