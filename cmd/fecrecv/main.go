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
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	myApp.Name = "fecrecv"
	myApp.Usage = "block-striped FEC image/metadata receiver"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listenaddr, l",
			Value: ":29900",
			Usage: "local UDP listen address",
		},
		cli.StringFlag{
			Name:  "imageout",
			Value: "received.jpg",
			Usage: "path to write the reassembled image to",
		},
		cli.StringFlag{
			Name:  "metadataout",
			Value: "received.json",
			Usage: "path to write the reassembled metadata to",
		},
		cli.IntFlag{
			Name:  "fragmentsize",
			Value: codeparams.DefaultFragmentSize,
			Usage: "fragment size in bytes, identical at both ends",
		},
		cli.IntFlag{
			Name:  "sockbuf",
			Value: 4194304,
			Usage: "receive socket buffer size in bytes",
		},
		cli.IntFlag{
			Name:  "maxcompleted",
			Value: 4096,
			Usage: "bound on the completion set; 0 disables the bound",
		},
		cli.IntFlag{
			Name:  "maxopenmessages",
			Value: 0,
			Usage: "bound on concurrently in-flight message entries; 0 disables the bound",
		},
		cli.IntFlag{
			Name:  "staleaftersecs",
			Value: 30,
			Usage: "evict an in-flight message untouched for this long, in seconds; 0 disables eviction",
		},
		cli.BoolFlag{
			Name:  "nonfataldeframe",
			Usage: "downgrade PayloadDeframeFailed from a fatal error to a per-message drop",
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
			Name:  "snmplog",
			Value: "",
			Usage: "collect a counter snapshot to file, aware of timeformat in golang, like: ./snmp-20060102.log",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 60,
			Usage: "snmp collect period, in seconds",
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
		ListenAddr:      c.String("listenaddr"),
		ImageOutPath:    c.String("imageout"),
		MetadataOutPath: c.String("metadataout"),
		FragmentSize:    c.Int("fragmentsize"),
		SockBuf:         c.Int("sockbuf"),
		MaxCompleted:    c.Int("maxcompleted"),
		MaxOpenMessages: c.Int("maxopenmessages"),
		StaleAfterSecs:  c.Int("staleaftersecs"),
		FatalOnDeframe:  !c.Bool("nonfataldeframe"),
		Log:             c.String("log"),
		LogLevel:        c.String("loglevel"),
		MetricsAddr:     c.String("metricsaddr"),
		SnmpLog:         c.String("snmplog"),
		SnmpPeriod:      c.Int("snmpperiod"),
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

	log.Println("version:", VERSION)
	log.Println("listening on:", config.ListenAddr)
	log.Println("fragment size:", config.FragmentSize)
	log.Println("stale after (s):", config.StaleAfterSecs)

	logger := evlog.New(config.LogLevel)

	var metricsSrv *http.Server
	if config.MetricsAddr != "" {
		metricsSrv = metrics.StartHTTP(config.MetricsAddr)
		defer metrics.Shutdown(metricsSrv)
	}

	addr, err := net.ResolveUDPAddr("udp", config.ListenAddr)
	checkError(err)
	conn, err := net.ListenUDP("udp", addr)
	checkError(err)
	defer conn.Close()
	checkError(conn.SetReadBuffer(config.SockBuf))

	table := transport.NewTable(transport.Config{
		FragmentSize:        config.FragmentSize,
		MaxCompleted:        config.MaxCompleted,
		MaxOpenMessages:     config.MaxOpenMessages,
		StaleAfter:          time.Duration(config.StaleAfterSecs) * time.Second,
		FatalOnDeframeError: config.FatalOnDeframe,
		OnStale: func(messageID uint32) {
			logger.MessageStale(messageID)
			metrics.IncMessagesStale()
		},
	})

	receiver := transport.NewReceiver(table,
		writeFileSink(config.ImageOutPath),
		writeFileSink(config.MetadataOutPath),
		&countingLogger{Logger: logger},
	)

	go sigHandler(table)

	csvCtx, stopCSV := context.WithCancel(context.Background())
	defer stopCSV()
	go metrics.CSVLogger(csvCtx, config.SnmpLog, config.SnmpPeriod)
	go metrics.SampleGauges(csvCtx, time.Second, func() {
		metrics.SetOpenMessages(table.OpenMessageCount())
		metrics.SetCompletedSetSize(table.CompletedCount())
	})

	if err := receiver.Serve(conn, config.FragmentSize); err != nil {
		log.Printf("receive loop terminated: %+v\n", err)
		return err
	}
	return nil
}

func sigHandler(table *transport.Table) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	for range ch {
		log.Printf("open_messages=%d completed_set_size=%d\n", table.OpenMessageCount(), table.CompletedCount())
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
