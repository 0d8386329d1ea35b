package ingest

import "github.com/gabriel-vasile/mimetype"

// Classifier infers the MIME type of a file on disk. Classification failure
// is never fatal to an ingestion run; the record is simply created without
// an encoding format.
type Classifier interface {
	Classify(path string) (string, error)
}

// MimeClassifier classifies content by magic-byte detection.
type MimeClassifier struct{}

func (MimeClassifier) Classify(path string) (string, error) {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}

	return detected.String(), nil
}
