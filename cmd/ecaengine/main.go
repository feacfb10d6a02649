// Command ecaengine is a minimal embedding example for the engine
// package: it wires a one-chain chainsetup from a handful of flags
// and drives the engine directly. It is not an interactive front end
// or network server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/command"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/endpoint/portaudiodev"
	"github.com/Zopolis4/ecasound/endpoint/wavfile"
	"github.com/Zopolis4/ecasound/engine"
	"github.com/Zopolis4/ecasound/setup"
)

// portaudioTarget is the special -i/-o value that selects the live
// default sound device instead of a WAV file.
const portaudioTarget = "portaudio"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitInitFailure  = 1
	ExitStartError   = 2
	ExitRuntimeError = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("ecaengine", flag.ContinueOnError)
	in := flags.String("i", "", "input WAV file, or \"portaudio\" for the live default input device")
	out := flags.String("o", "", "output WAV file, or \"portaudio\" for the live default output device")
	buffersize := flags.Int("b", 1024, "buffersize in frames")
	channels := flags.Int("channels", 2, "channel count, used only when -i is portaudio")
	rate := flags.Int("rate", 48000, "sample rate, used only when -i is portaudio")
	if err := flags.Parse(args); err != nil {
		return ExitInitFailure
	}
	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: ecaengine -i in.wav -o out.wav [-b buffersize]")
		return ExitInitFailure
	}

	log := ecalog.New()

	var (
		inDev            endpoint.Device
		inKind           endpoint.Kind
		inLength         int64
		resolvedChannels int
		resolvedRate     int
	)
	if *in == portaudioTarget {
		pa := portaudiodev.New(*channels, *rate, *buffersize, true)
		inDev, inKind, inLength = pa, endpoint.RealtimeDevice, endpoint.InfiniteLength
		resolvedChannels, resolvedRate = *channels, *rate
	} else {
		source, err := wavfile.OpenSource(*in, wavfile.WAV, *buffersize)
		if err != nil {
			log.Error("ecaengine: open input failed: ", err)
			return ExitInitFailure
		}
		inDev, inKind, inLength = source, endpoint.FileSource, endpoint.InfiniteLength
		resolvedChannels, resolvedRate = source.Channels(), source.SampleRate()
	}

	var (
		outDev  endpoint.Device
		outKind endpoint.Kind
	)
	if *out == portaudioTarget {
		outDev, outKind = portaudiodev.New(resolvedChannels, resolvedRate, *buffersize, false), endpoint.RealtimeDevice
	} else {
		sink, err := wavfile.CreateSink(*out, wavfile.WAV, resolvedChannels, resolvedRate, *buffersize)
		if err != nil {
			log.Error("ecaengine: create output failed: ", err)
			return ExitInitFailure
		}
		outDev, outKind = sink, endpoint.FileSink
	}

	cs := setup.New(*buffersize, resolvedRate)
	cs.AddInput(endpoint.New(*in, inKind, endpoint.Read, inDev, inLength))
	cs.AddOutput(endpoint.New(*out, outKind, endpoint.Write, outDev, 0))
	cs.AddChain(chain.New(0, 0))

	queue := command.NewQueue(64)
	e := engine.New(engine.Options{Log: log, CommandQueue: queue})

	if err := e.Connect(cs); err != nil {
		log.Error("ecaengine: connect failed: ", err)
		return ExitInitFailure
	}
	if err := e.Start(); err != nil {
		log.Error("ecaengine: start failed: ", err)
		return ExitStartError
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigDone := make(chan struct{})
	go func() {
		engine.WatchSignals(queue, ctx.Done())
		close(sigDone)
	}()

	err := e.Run(ctx)
	cancel()
	<-sigDone

	if err != nil {
		log.Error("ecaengine: run failed: ", err)
		return ExitRuntimeError
	}
	return ExitSuccess
}
