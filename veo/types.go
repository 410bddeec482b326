package veo

import (
	"strings"

	"github.com/dreamtide/veod/errors"
)

// AspectRatio is the output frame orientation accepted by the backend.
type AspectRatio string

const (
	AspectRatioLandscape AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "9:16"
)

// Validate returns an error if the aspect ratio is not one the backend accepts.
func (a AspectRatio) Validate() error {
	switch a {
	case AspectRatioLandscape, AspectRatioPortrait:
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidRequest, "aspect ratio %q (want %q or %q)",
			string(a), AspectRatioLandscape, AspectRatioPortrait)
	}
}

// GenerateRequest is the submit payload for a new video generation.
type GenerateRequest struct {
	Prompt          string      `json:"prompt"`
	AspectRatio     AspectRatio `json:"aspectRatio"`
	DurationSeconds int         `json:"durationSeconds"`
	GenerateAudio   bool        `json:"generateAudio"`
	EnhancePrompt   bool        `json:"enhancePrompt"`
	Model           string      `json:"model,omitempty"`
	NegativePrompt  string      `json:"negativePrompt,omitempty"`
	Seed            *int        `json:"seed,omitempty"`
	SampleCount     *int        `json:"sampleCount,omitempty"`
	StorageURI      string      `json:"storageUri,omitempty"`
}

// Validate checks the request before any network call is made.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "prompt cannot be empty")
	}
	if err := r.AspectRatio.Validate(); err != nil {
		return err
	}
	if r.DurationSeconds <= 0 {
		return errors.Wrap(errors.ErrInvalidRequest, "durationSeconds must be positive")
	}
	return nil
}

// generateResponse is the submit response; name is the operation id.
type generateResponse struct {
	Name string `json:"name"`
}

// statusRequest is the poll payload.
type statusRequest struct {
	OperationName string `json:"operationName"`
}

// OperationStatus is the backend's view of an in-flight operation.
// Exactly one of the three outcomes applies once Done is true: Error,
// Response.Videos, or Response.RAIMediaFilteredReasons.
type OperationStatus struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done,omitempty"`
	Response *OperationResponse `json:"response,omitempty"`
	Error    *OperationError    `json:"error,omitempty"`
}

// OperationResponse carries the completed operation's artifact or the
// content-policy filter detail.
type OperationResponse struct {
	Type                    string   `json:"@type,omitempty"`
	RAIMediaFilteredCount   int      `json:"raiMediaFilteredCount,omitempty"`
	RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons,omitempty"`
	Videos                  []Video  `json:"videos,omitempty"`
}

// Video is a single produced artifact, delivered inline or by pointer.
type Video struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSUri             string `json:"gcsUri,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

// Ref returns the artifact reference: the remote pointer when present,
// otherwise an inline handle wrapping the base64 payload.
func (v Video) Ref() string {
	if v.GCSUri != "" {
		return v.GCSUri
	}
	if v.BytesBase64Encoded != "" {
		return InlinePrefix + v.BytesBase64Encoded
	}
	return ""
}

// InlinePrefix marks a result reference whose payload is carried inline
// as base64 rather than by remote URI.
const InlinePrefix = "inline:base64,"

// OperationError is the backend's terminal error detail.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// FilteredReasons joins the content-policy filter reasons for display.
func (s *OperationStatus) FilteredReasons() string {
	if s.Response == nil {
		return ""
	}
	return strings.Join(s.Response.RAIMediaFilteredReasons, "; ")
}
