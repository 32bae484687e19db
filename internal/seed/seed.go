/*
Package seed turns a root directory of per-subject photo folders into embedding artifacts.

A run scans the subject folders, extracts one descriptor per photo that shows a face and writes
the stacked table for each subject. Subjects are processed one after another and a failing
subject never stops the batch.
*/
package seed

import (
	"errors"

	"github.com/andresmejia3/faceseed/internal/event"
)

var log = event.Log

var (
	// ErrInvalidInput means the input root is missing or not a directory. It is the only
	// error that aborts a batch.
	ErrInvalidInput = errors.New("invalid input directory")
	// ErrNoEmbeddings means none of a subject's photos produced a descriptor.
	ErrNoEmbeddings = errors.New("no embeddings produced")
)

// Subject is one person's photo folder. ID is the folder name.
type Subject struct {
	ID   string
	Path string
}
