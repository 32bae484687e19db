/*
Package dlib provides an in-process face capability on top of dlib through go-face.

It is compiled only with the dlib build tag since it needs the dlib C++ libraries and
the model files (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat
and mmod_human_face_detector.dat) in the configured model directory. Without the tag New returns
ErrUnavailable.
*/
package dlib

import (
	"errors"

	"github.com/andresmejia3/faceseed/internal/event"
	"github.com/andresmejia3/faceseed/internal/faces"
)

var log = event.Log

// ErrUnavailable means the binary was built without the dlib tag.
var ErrUnavailable = errors.New("dlib backend not compiled in (build with -tags dlib)")

// match returns the index of the face whose box equals b, or -1.
func match(found []faces.Box, b faces.Box) int {
	for i, f := range found {
		if f == b {
			return i
		}
	}
	return -1
}
