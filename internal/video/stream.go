package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"motionrecorder/internal/frame"
	"motionrecorder/internal/motion"
)

// Stream reads frames from a camera, a file or a network URL.
type Stream struct {
	Video      *gocv.VideoCapture
	name       string
	frameIndex int
}

func NewDeviceStream(device int) (*Stream, error) {
	video, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("unable to open video device %d: %w", device, err)
	}
	return newStream(video, fmt.Sprintf("device %d", device))
}

func NewFileStream(videoPath string) (*Stream, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open video file: %w", err)
	}
	return newStream(video, videoPath)
}

// NewURLStream opens a network stream (rtsp, http mjpeg, ...).
func NewURLStream(videoUrl string) (*Stream, error) {
	video, err := gocv.VideoCaptureFile(videoUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to open video url: %w", err)
	}
	return newStream(video, videoUrl)
}

func newStream(video *gocv.VideoCapture, name string) (*Stream, error) {
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("video source %s is not opened", name)
	}
	return &Stream{Video: video, name: name}, nil
}

// Read returns the next frame, or motion.ErrEndOfStream once the capture
// yields an empty image.
func (s *Stream) Read() (motion.Frame, error) {
	mat := gocv.NewMat()
	if ok := s.Video.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, motion.ErrEndOfStream
	}

	f, err := frame.NewFrame(s.frameIndex, &mat)
	if err != nil {
		mat.Close()
		return nil, err
	}
	s.frameIndex++

	return f, nil
}

func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) Fps() float64 {
	return s.Video.Get(gocv.VideoCaptureFPS)
}

func (s *Stream) Size() image.Point {
	return image.Pt(
		int(s.Video.Get(gocv.VideoCaptureFrameWidth)),
		int(s.Video.Get(gocv.VideoCaptureFrameHeight)),
	)
}

func (s *Stream) Close() {
	s.Video.Close()
}
