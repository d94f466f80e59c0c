/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stirshaken/core/engine"
	"github.com/stirshaken/core/internal/config"
	"github.com/stirshaken/core/passport"
	"github.com/stirshaken/core/registry"
)

func must(err error) {
	if err != nil {
		log.Fatal(err.Error())
	}
}

func waitForShutdownSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	<-signals
}

// This is meant to be set at build time with -ldflags, for instance with
// "git describe" or a hard coded version number.
var version = "version not set at build time"

func main() {
	var versionFlag bool
	flag.BoolVar(&versionFlag, "version", false, "display program version and exit")
	flag.BoolVar(&versionFlag, "v", false, "alias for version")

	var helpFlag bool
	flag.BoolVar(&helpFlag, "help", false, "display command line usage and exit")
	flag.BoolVar(&helpFlag, "h", false, "alias for help")

	var verifyFlag bool
	flag.BoolVar(&verifyFlag, "verify", false, "read a JSON identity assertion from stdin, verify it, print the result")

	var signFlag bool
	flag.BoolVar(&signFlag, "sign", false, "read a JSON passport skeleton from stdin, sign it, print the result")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] <config-file>\nWhere options can include:\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if helpFlag {
		flag.Usage()
		return
	}

	if versionFlag {
		fmt.Fprintf(os.Stdout, "ssengine STIR/SHAKEN engine (%s)\n", version)
		return
	}

	if flag.NArg() < 1 {
		flag.Usage()
		log.Fatal("Missing configuration file path")
	}

	cfg, err := config.Load(flag.Arg(0))
	must(err)

	var reg registry.Registry
	if cfg.CertificatePath != "" {
		reg, err = registry.NewStaticRegistry(cfg.CertificatePath, cfg.CertificatePublicKeyURL, passport.ParsePrivateKeyBytes)
		must(err)
	}

	eng, err := engine.New(cfg, reg)
	if err != nil {
		log.Fatalf("Failed to construct engine: %v", err)
	}

	switch {
	case verifyFlag:
		runVerify(eng)
		return
	case signFlag:
		runSign(eng)
		return
	}

	log.Printf("ssengine started, waiting for shutdown signal...")
	waitForShutdownSignal()

	log.Printf("Shutting down...")
	if err := eng.Close(); err != nil {
		log.Printf("Failed to close engine cleanly: %v", err)
	}
	log.Printf("Done.")
}

// identityAssertion is the JSON shape -verify reads from stdin: the five
// inputs to passport.Verify, per spec.md section 4.E.
type identityAssertion struct {
	Header       string `json:"header_str"`
	Payload      string `json:"payload_str"`
	Signature    string `json:"signature_b64"`
	Algorithm    string `json:"alg"`
	PublicKeyURL string `json:"x5u"`
}

func runVerify(eng *engine.Engine) {
	var in identityAssertion
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		log.Fatalf("Failed to decode identity assertion from stdin: %v", err)
	}

	result, verr := eng.Verify(context.Background(), in.Header, in.Payload, in.Signature, in.Algorithm, in.PublicKeyURL)
	if verr != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %s\n", verr.Error())
		os.Exit(1)
	}

	must(json.NewEncoder(os.Stdout).Encode(result))
}

func runSign(eng *engine.Engine) {
	var doc map[string]interface{}
	if err := json.NewDecoder(os.Stdin).Decode(&doc); err != nil {
		log.Fatalf("Failed to decode passport skeleton from stdin: %v", err)
	}

	result, serr := eng.Sign(doc, eng.SignOptionsFromConfig())
	if serr != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %s\n", serr.Error())
		os.Exit(1)
	}

	must(json.NewEncoder(os.Stdout).Encode(result))
}
