package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"

	"github.com/footfall/footfall/server"
	"github.com/footfall/footfall/server/detect"
)

func main() {
	nominalDefaultDir := "$HOME/footfall"

	parser := argparse.NewParser("footfall", "Directional pedestrian traffic counter")
	configDir := parser.String("c", "config", &argparse.Options{Help: "Configuration directory (databases live here)", Default: nominalDefaultDir})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "YOLOv8 ONNX model file", Default: "models/yolov8m.onnx"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	dir := *configDir
	if dir == nominalDefaultDir {
		home, _ := os.UserHomeDir()
		if home == "" {
			home = "/var/lib"
		}
		dir = filepath.Join(home, "footfall")
	}

	detector, err := detect.NewYoloDetector(logger, *modelFile)
	if err != nil {
		logger.Errorf("Failed to load detector: %v", err)
		os.Exit(1)
	}
	defer detector.Close()

	srv, err := server.NewServer(logger, dir, detector)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if err := srv.StartAllCameras(); err != nil {
		// Failure to reach a camera at startup is not fatal. The camera
		// loop retries, and cameras can be restarted through the API.
		logger.Warnf("One or more cameras failed to start: %v", err)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(*port); err != nil {
		logger.Infof("ListenHTTP returned: %v", err)
	}
}
