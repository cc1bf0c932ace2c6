package core

import (
	"errors"
	"fmt"
)

// PersistenceError reports a transcript or settings file that could not be read or written.
type PersistenceError struct {
	Op   string // "open", "write", "read", "sync", ...
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ProviderError reports a failed call to a remote completion, speech or recognition provider.
// Status is the HTTP status when one was received, 0 for transport failures.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s provider: status %d: %s", e.Provider, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s provider: status %d", e.Provider, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFoundError reports a session or file that does not exist.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Name)
}

type RecognitionErrorKind int

const (
	RecognitionUnintelligible RecognitionErrorKind = iota + 1 // audio captured but no words recognized
	RecognitionUnavailable                                    // recognizer or microphone could not be reached
)

func (k RecognitionErrorKind) String() string {
	switch k {
	case RecognitionUnintelligible:
		return "unintelligible"
	case RecognitionUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// RecognitionError is returned by voice capture.
type RecognitionError struct {
	Kind RecognitionErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return "recognition " + e.Kind.String()
	}
	return fmt.Sprintf("recognition %s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// StatusLine renders err as the short, category-prefixed line shown to the user.
func StatusLine(err error) string {
	var (
		persistErr  *PersistenceError
		providerErr *ProviderError
		notFound    *NotFoundError
		recogErr    *RecognitionError
	)
	switch {
	case errors.As(err, &recogErr):
		if recogErr.Kind == RecognitionUnintelligible {
			return "[Voice] Could not understand audio."
		}
		return fmt.Sprintf("[Voice] Recognition unavailable: %v", recogErr.Err)
	case errors.As(err, &persistErr):
		return fmt.Sprintf("[Storage] %v", persistErr)
	case errors.As(err, &notFound):
		return fmt.Sprintf("[Error] %v", notFound)
	case errors.As(err, &providerErr):
		if providerErr.Provider == "speech" {
			return fmt.Sprintf("[TTS] %v", providerErr)
		}
		return fmt.Sprintf("[Error] %v", providerErr)
	default:
		return fmt.Sprintf("[Error] %v", err)
	}
}
