package usecase

import (
	"net/http"
	"strings"
)

// ImageFormat is the sniffed format of an uploaded image.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// Extension returns the file extension used when staging the image.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpg"
	default:
		return ""
	}
}

// MIMEType returns the media type of the format.
func (f ImageFormat) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return ""
	}
}

// DetectFormat sniffs data and reports whether it is a supported image.
func DetectFormat(data []byte) (ImageFormat, bool) {
	switch http.DetectContentType(data) {
	case "image/png":
		return FormatPNG, true
	case "image/jpeg":
		return FormatJPEG, true
	default:
		return "", false
	}
}

// Upload is the raw file received from the user. Filename and ContentType are
// what the client declared and are only used for logging.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Image is an upload whose content was recognised.
type Image struct {
	Format ImageFormat
	Data   []byte
}

// InputState is the verdict of the input collector.
type InputState int

const (
	InputReady InputState = iota
	InputMissingImage
	InputMissingQuestion
	InputMissingBoth
	InputUnsupportedImage
)

func (s InputState) String() string {
	switch s {
	case InputReady:
		return "ready"
	case InputMissingImage:
		return "missing_image"
	case InputMissingQuestion:
		return "missing_question"
	case InputMissingBoth:
		return "missing_both"
	case InputUnsupportedImage:
		return "unsupported_image"
	default:
		return "unknown"
	}
}

// Input is the collected image and question. Image and Question are only
// meaningful when State is InputReady.
type Input struct {
	State    InputState
	Image    Image
	Question string
}

// CollectInput validates the presence of both an image and a question. It has
// no side effects.
func CollectInput(upload *Upload, question string) Input {
	question = strings.TrimSpace(question)
	hasImage := upload != nil && len(upload.Data) > 0
	hasQuestion := question != ""

	switch {
	case !hasImage && !hasQuestion:
		return Input{State: InputMissingBoth}
	case !hasImage:
		return Input{State: InputMissingImage, Question: question}
	}

	format, ok := DetectFormat(upload.Data)
	if !ok {
		return Input{State: InputUnsupportedImage, Question: question}
	}
	image := Image{Format: format, Data: upload.Data}
	if !hasQuestion {
		return Input{State: InputMissingQuestion, Image: image}
	}
	return Input{State: InputReady, Image: image, Question: question}
}
