// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/fecbridge/internal/codeparams"
	"github.com/xtaci/fecbridge/internal/evlog"
	"github.com/xtaci/fecbridge/internal/metrics"
	"github.com/xtaci/fecbridge/internal/transport"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "fecsend"
	myApp.Usage = "block-striped FEC image/metadata sender"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "remoteaddr, r",
			Value: "127.0.0.1:29900",
			Usage: "destination UDP address",
		},
		cli.StringFlag{
			Name:  "image, i",
			Value: "",
			Usage: "path to the JPEG image to send",
		},
		cli.StringFlag{
			Name:  "metadata, m",
			Value: "",
			Usage: "path to the JSON metadata document to send",
		},
		cli.IntFlag{
			Name:  "messageid",
			Value: 1,
			Usage: "message_id to stamp on this transmission",
		},
		cli.IntFlag{
			Name:  "fragmentsize",
			Value: codeparams.DefaultFragmentSize,
			Usage: "fragment size in bytes, identical at both ends",
		},
		cli.Float64Flag{
			Name:  "redundancy",
			Value: codeparams.DefaultTargetRedundancy,
			Usage: "target redundancy ratio for the code parameter selector",
		},
		cli.IntFlag{
			Name:  "maxn",
			Value: codeparams.DefaultMaxN,
			Usage: "maximum fragments per block",
		},
		cli.IntFlag{
			Name:  "mink",
			Value: codeparams.DefaultMinK,
			Usage: "minimum data fragments per block",
		},
		cli.IntFlag{
			Name:  "pacingmicros",
			Value: 1000,
			Usage: "delay between datagrams, in microseconds (reference: 1ms)",
		},
		cli.IntFlag{
			Name:  "drainmillis",
			Value: 20,
			Usage: "delay after the last datagram before closing the socket",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Value: "info",
			Usage: "event logger level: debug, info, warn, error",
		},
		cli.StringFlag{
			Name:  "metricsaddr",
			Value: "",
			Usage: "address to serve Prometheus metrics on, empty disables it",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func run(c *cli.Context) error {
	config := Config{
		RemoteAddr:       c.String("remoteaddr"),
		ImagePath:        c.String("image"),
		MetadataPath:     c.String("metadata"),
		MessageID:        uint32(c.Int("messageid")),
		FragmentSize:     c.Int("fragmentsize"),
		TargetRedundancy: c.Float64("redundancy"),
		MaxN:             c.Int("maxn"),
		MinK:             c.Int("mink"),
		PacingMicros:     c.Int("pacingmicros"),
		DrainMillis:      c.Int("drainmillis"),
		Log:              c.String("log"),
		LogLevel:         c.String("loglevel"),
		MetricsAddr:      c.String("metricsaddr"),
	}

	if c.String("c") != "" {
		checkError(parseJSONConfig(&config, c.String("c")))
	}

	if config.Log != "" {
		f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		checkError(err)
		defer f.Close()
		log.SetOutput(f)
	}

	if config.ImagePath == "" || config.MetadataPath == "" {
		color.Red("both -image and -metadata are required")
		os.Exit(-1)
	}
	if config.TargetRedundancy <= 0 {
		color.Yellow("WARNING: redundancy %v will never converge to N > K, forcing a minimal non-zero value", config.TargetRedundancy)
		config.TargetRedundancy = 0.01
	}

	log.Println("version:", VERSION)
	log.Println("remote address:", config.RemoteAddr)
	log.Println("fragment size:", config.FragmentSize)
	log.Println("target redundancy:", config.TargetRedundancy)

	logger := evlog.New(config.LogLevel)

	var metricsSrv *http.Server
	if config.MetricsAddr != "" {
		metricsSrv = metrics.StartHTTP(config.MetricsAddr)
		defer metrics.Shutdown(metricsSrv)
	}

	image, err := readFileSource(config.ImagePath)()
	checkError(err)
	metadata, err := readFileSource(config.MetadataPath)()
	checkError(err)

	conn, err := net.Dial("udp", config.RemoteAddr)
	checkError(err)
	defer conn.Close()

	emitter := transport.NewEmitter(transport.EmitterConfig{
		FragmentSize:     config.FragmentSize,
		TargetRedundancy: config.TargetRedundancy,
		MaxN:             config.MaxN,
		MinK:             config.MinK,
		InterPacketDelay: time.Duration(config.PacingMicros) * time.Microsecond,
		DrainDelay:       time.Duration(config.DrainMillis) * time.Millisecond,
	})

	params, err := emitter.Send(conn, config.MessageID, image, metadata)
	checkError(err)

	metrics.SelectorEfficiency.Set(params.Efficiency)
	metrics.AddDatagramsSent(params.NumBlocks * params.N)
	logger.MessageCompleted(config.MessageID, len(image), len(metadata))
	log.Printf("sent message_id=%d k=%d n=%d num_blocks=%d efficiency=%.4f\n",
		config.MessageID, params.K, params.N, params.NumBlocks, params.Efficiency)
	return nil
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
