package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"motionrecorder/internal/config"
	"motionrecorder/internal/flow"
	"motionrecorder/internal/motion"
	"motionrecorder/internal/notify"
	"motionrecorder/internal/session"
	"motionrecorder/internal/video"
)

func main() {
	var configPath string
	var device int
	var videoPath string
	var videoUrl string
	var threshold float64
	var extension time.Duration
	var fps float64
	var outputDir string
	var logLevel string
	var overlay bool

	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.IntVar(&device, "device", 0, "Camera device index")
	flag.StringVar(&videoPath, "video-file", "", "Video file")
	flag.StringVar(&videoUrl, "video-url", "", "Video url")
	flag.Float64Var(&threshold, "threshold", 1000, "Kinetic energy threshold (resolution dependent)")
	flag.DurationVar(&extension, "extension", 30*time.Second, "Recording time after the last motion")
	flag.Float64Var(&fps, "fps", 10, "Output video frame rate")
	flag.StringVar(&outputDir, "output-dir", ".", "Directory for recordings")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.BoolVar(&overlay, "overlay", false, "Stamp the current time on recorded frames")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Source.Device = device
		case "video-file":
			cfg.Source.File = videoPath
		case "video-url":
			cfg.Source.URL = videoUrl
		case "threshold":
			cfg.Motion.Threshold = threshold
		case "extension":
			cfg.Motion.Extension = extension
		case "fps":
			cfg.Output.FPS = fps
		case "output-dir":
			cfg.Output.Dir = outputDir
		case "log-level":
			cfg.Log.Level = logLevel
		case "overlay":
			cfg.Output.Overlay = overlay
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if session.IsSetupError(err) {
			log.WithError(err).Error("Fatal setup error")
		} else {
			log.WithError(err).Error("Motion recorder failed")
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	stream, err := openStream(cfg.Source)
	if err != nil {
		return &session.SetupError{Op: "open source", Target: sourceName(cfg.Source), Err: err}
	}
	defer stream.Close()

	log.WithFields(log.Fields{
		"source": stream.Name(),
		"fps":    stream.Fps(),
		"size":   stream.Size(),
	}).Info("Video source opened")

	controllerOpts := []session.Option{
		session.WithNamer(session.DefaultNamer(cfg.Output.Dir)),
	}

	if cfg.MQTT.Broker != "" {
		notifier := notify.NewMQTT(notify.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, log.StandardLogger())
		if err := notifier.Connect(); err != nil {
			log.WithError(err).Warn("Session notifications will be retried in the background")
		}
		defer notifier.Close()
		controllerOpts = append(controllerOpts, session.WithListener(notifier))
	}

	controller, err := session.NewController(session.Config{
		Threshold: cfg.Motion.Threshold,
		Extension: cfg.Motion.Extension,
		FPS:       cfg.Output.FPS,
	}, video.NewWriter(cfg.Output.Codec), controllerOpts...)
	if err != nil {
		return err
	}

	var detectorOpts []motion.DetectorOption
	if cfg.Output.Overlay {
		detectorOpts = append(detectorOpts, motion.WithAnnotator(video.NewOverlay()))
	}

	motionDetector := motion.NewMotionDetector(stream, flow.NewFarneback(), controller, detectorOpts...)

	return motionDetector.Detect(ctx)
}

func openStream(src config.SourceConfig) (*video.Stream, error) {
	switch {
	case src.URL != "":
		return video.NewURLStream(src.URL)
	case src.File != "":
		return video.NewFileStream(src.File)
	default:
		return video.NewDeviceStream(src.Device)
	}
}

func sourceName(src config.SourceConfig) string {
	switch {
	case src.URL != "":
		return src.URL
	case src.File != "":
		return src.File
	default:
		return fmt.Sprintf("device %d", src.Device)
	}
}
