/*
 * nemu-mips32 - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/wierton/nemu-mips32/command"
	"github.com/wierton/nemu-mips32/config/machine"
	"github.com/wierton/nemu-mips32/emu/core"
	"github.com/wierton/nemu-mips32/emu/cpu"
	"github.com/wierton/nemu-mips32/emu/master"
	"github.com/wierton/nemu-mips32/monitor"
	"github.com/wierton/nemu-mips32/util/debug"
	"github.com/wierton/nemu-mips32/util/logger"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Machine description file")
	optImage := getopt.StringLong("image", 'i', "", "Flat binary image")
	optElf := getopt.StringLong("elf", 'e', "", "ELF executable")
	optKernel := getopt.StringLong("kernel", 'k', "", "uImage blob")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optBatch := getopt.BoolLong("batch", 'b', "Run without the monitor REPL")
	optTrace := getopt.BoolLong("trace", 't', "Trace executed instructions")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logWriter io.Writer = io.Discard
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err == nil {
			logWriter = file
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(logWriter,
		&slog.HandlerOptions{Level: programLevel}, false))
	slog.SetDefault(Logger)

	Logger.Info("nemu-mips32 started")

	cfg := machine.Default()
	if *optConfig != "" {
		var err error
		cfg, err = machine.Load(*optConfig)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}

	if *optTrace {
		cpu.SetTrace(true)
		if cfg.DebugFile == "" {
			debug.UseStderr()
		}
		cfg.Debug = append(cfg.Debug, "INST")
	}

	mon, err := monitor.Initialize(cfg, monitor.Options{
		Image:       *optImage,
		Elf:         *optElf,
		Kernel:      *optKernel,
		Interactive: !*optBatch,
	})
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	defer mon.Shutdown()

	masterChannel := make(chan master.Packet)
	sim := core.New(masterChannel)
	go sim.Start()

	// Wait for a SIGINT or SIGTERM signal to gracefully shut down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	masterChannel <- master.Packet{Msg: master.Start}

	if *optBatch {
		select {
		case <-sigChan:
			Logger.Info("Got quit signal")
		case <-sim.Ended():
		}
	} else {
		done := make(chan struct{})
		go func() {
			command.Run(masterChannel)
			close(done)
		}()
		select {
		case <-sigChan:
			Logger.Info("Got quit signal")
		case <-done:
		case <-sim.Ended():
		}
	}

	Logger.Info("Shutting down CPU")
	sim.Stop()
	Logger.Info("Simulator stopped.")
}
