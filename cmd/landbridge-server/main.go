package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/landbridge/landbridge/core"
	"github.com/landbridge/landbridge/internal/log"
	"github.com/landbridge/landbridge/internal/server"
)

var (
	dir         string
	port        int
	host        string
	verbose     bool
	veryVerbose bool
	quiet       bool
	pidfile     string
	logJSON     bool
)

var (
	devMode         bool
	httpTransport   = true
	protectedMode   = "no"
	appendOnly      = true
	appendFileName  string
	historyFileName string
	metricsAddr     string
)

func main() {
	gitsha := " (" + core.GitSHA + ")"
	if gitsha == " (0000000)" {
		gitsha = ""
	}
	versionLine := `landbridge-server version: ` + core.Version + gitsha

	output := os.Stderr
	flag.Usage = func() {
		fmt.Fprintf(output,
			versionLine+`

Usage: landbridge-server [-p port]

Basic Options:
  -h hostname : listening host
  -p port     : listening port (default: 9871)
  -d path     : data directory (default: data)
  -q          : no logging. totally silent output
  -v          : enable verbose logging
  -vv         : enable very verbose logging

Advanced Options:
  --pidfile path           : file that contains the pid
  --appendonly yes/no      : AOF persistence (default: yes)
  --appendfilename path    : AOF path (default: data/appendonly.aof)
  --historyfilename path   : merge history path (default: data/history.db)
  --http-transport yes/no  : HTTP transport (default: yes)
  --protected-mode yes/no  : protected mode (default: yes)
  --metrics-addr addr      : listen for Prometheus requests (default: disabled)
  --log-json yes/no        : log in JSON format (default: no)

Developer Options:
  --dev : enable developer mode

`,
		)
	}

	// parse non standard args.
	nargs := []string{os.Args[0]}
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--help":
			output = os.Stdout
			flag.Usage()
			return
		case "--version":
			fmt.Fprintf(os.Stdout, "%s\n", versionLine)
			return
		case "--protected-mode", "-protected-mode":
			i++
			if i < len(os.Args) {
				switch strings.ToLower(os.Args[i]) {
				case "no":
					protectedMode = "no"
					continue
				case "yes":
					protectedMode = "yes"
					continue
				}
			}
			fmt.Fprintf(os.Stderr, "protected-mode must be 'yes' or 'no'\n")
			os.Exit(1)
		case "--dev", "-dev":
			devMode = true
			continue
		case "--appendonly", "-appendonly":
			i++
			if i < len(os.Args) {
				switch strings.ToLower(os.Args[i]) {
				case "no":
					appendOnly = false
					continue
				case "yes":
					appendOnly = true
					continue
				}
			}
			fmt.Fprintf(os.Stderr, "appendonly must be 'yes' or 'no'\n")
			os.Exit(1)
		case "--appendfilename", "-appendfilename":
			i++
			if i == len(os.Args) || os.Args[i] == "" {
				fmt.Fprintf(os.Stderr, "appendfilename must have a value\n")
				os.Exit(1)
			}
			appendFileName = os.Args[i]
		case "--historyfilename", "-historyfilename":
			i++
			if i == len(os.Args) || os.Args[i] == "" {
				fmt.Fprintf(os.Stderr, "historyfilename must have a value\n")
				os.Exit(1)
			}
			historyFileName = os.Args[i]
		case "--http-transport", "-http-transport":
			i++
			if i < len(os.Args) {
				switch strings.ToLower(os.Args[i]) {
				case "1", "true", "yes":
					httpTransport = true
					continue
				case "0", "false", "no":
					httpTransport = false
					continue
				}
			}
			fmt.Fprintf(os.Stderr, "http-transport must be 'yes' or 'no'\n")
			os.Exit(1)
		case "--metrics-addr", "-metrics-addr":
			i++
			if i == len(os.Args) || os.Args[i] == "" {
				fmt.Fprintf(os.Stderr, "metrics-addr must have a value\n")
				os.Exit(1)
			}
			metricsAddr = os.Args[i]
		case "--log-json", "-log-json":
			i++
			if i < len(os.Args) {
				switch strings.ToLower(os.Args[i]) {
				case "no":
					logJSON = false
					continue
				case "yes":
					logJSON = true
					continue
				}
			}
			fmt.Fprintf(os.Stderr, "log-json must be 'yes' or 'no'\n")
			os.Exit(1)
		default:
			nargs = append(nargs, os.Args[i])
		}
	}
	os.Args = nargs

	flag.IntVar(&port, "p", 9871, "The listening port.")
	flag.StringVar(&pidfile, "pidfile", "", "A file that contains the pid")
	flag.StringVar(&host, "h", "", "The listening host.")
	flag.StringVar(&dir, "d", "data", "The data directory.")
	flag.BoolVar(&verbose, "v", false, "Enable verbose logging.")
	flag.BoolVar(&quiet, "q", false, "Quiet logging. Totally silent.")
	flag.BoolVar(&veryVerbose, "vv", false, "Enable very verbose logging.")
	flag.Parse()

	var logw io.Writer = os.Stderr
	if quiet {
		logw = ioutil.Discard
	}
	log.SetOutput(logw)
	if quiet {
		log.Level = 0
	} else if veryVerbose {
		log.Level = 3
	} else if verbose {
		log.Level = 2
	} else {
		log.Level = 1
	}
	if logJSON {
		log.LogJSON = true
		if err := log.Build(""); err != nil {
			log.Fatal(err)
		}
	}

	hostd := ""
	if host != "" {
		hostd = "Addr: " + host + ", "
	}

	var cleanedup bool
	var cleanupMu sync.Mutex
	cleanup := func() {
		cleanupMu.Lock()
		defer cleanupMu.Unlock()
		if cleanedup {
			return
		}
		if pidfile != "" {
			os.Remove(pidfile)
		}
		cleanedup = true
	}
	defer cleanup()

	var pidferr error
	if pidfile != "" {
		pidferr = ioutil.WriteFile(pidfile,
			[]byte(fmt.Sprintf("%d\n", os.Getpid())), 0666)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-c
		log.Warnf("signal: %v", s)
		cleanup()
		switch {
		default:
			os.Exit(-1)
		case s == syscall.SIGHUP:
			os.Exit(1)
		case s == syscall.SIGINT:
			os.Exit(2)
		case s == syscall.SIGQUIT:
			os.Exit(3)
		case s == syscall.SIGTERM:
			os.Exit(0xf)
		}
	}()

	fmt.Fprintf(logw, `
   _     ____
  | |   | __ )
  | |   |  _ \    Landbridge %s%s %d bit (%s/%s)
  | |___| |_) |   %sPort: %d, PID: %d
  |_____|____/
`+"\n", core.Version, gitsha, strconv.IntSize, runtime.GOARCH, runtime.GOOS,
		hostd, port, os.Getpid())
	if pidferr != nil {
		log.Warnf("pidfile: %v", pidferr)
	}
	if err := server.Serve(server.Options{
		Host:              host,
		Port:              port,
		Dir:               dir,
		UseHTTP:           httpTransport,
		MetricsAddr:       metricsAddr,
		DevMode:           devMode,
		ShowDebugMessages: veryVerbose,
		ProtectedMode:     protectedMode,
		AppendOnly:        appendOnly,
		AppendFileName:    appendFileName,
		HistoryFileName:   historyFileName,
	}); err != nil {
		log.Fatal(err)
	}
}
