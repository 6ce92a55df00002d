//go:build !whisper

package asr

import "github.com/sirupsen/logrus"

// Open always fails in builds without whisper.cpp.
func Open(*Options, logrus.FieldLogger) (Transcriber, error) {
	return nil, ErrUnavailable
}
