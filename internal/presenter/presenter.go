package presenter

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	"github.com/example/dish-advisor/internal/usecase"
)

// Kind selects how a View is styled.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

const (
	answerTitle  = "Answer to Your Question"
	imageCaption = "Uploaded Dish Image"

	msgMissingImage     = "Please upload an image of a dish to ask a question."
	msgMissingQuestion  = "Please enter a question about the dish."
	msgUnsupportedImage = "Please upload a PNG or JPEG image of your dish."
)

var failureMessages = map[usecase.FailureKind]string{
	usecase.FailureStorage:       "The uploaded image could not be prepared for analysis. Please try again.",
	usecase.FailureConnection:    "Could not reach the nutrition model. Please make sure the inference service is running and try again.",
	usecase.FailureTimeout:       "The nutrition model took too long to respond. Please try again.",
	usecase.FailureProtocol:      "The nutrition model returned a response that could not be read. Please try again.",
	usecase.FailureEmptyResponse: "No advice could be retrieved for this dish. Please try a different image.",
	usecase.FailureRequest:       "The request to the nutrition model failed. Please try again.",
	usecase.FailureUnclassified:  "An error occurred while analyzing the dish. Please try again.",
}

var failureStatus = map[usecase.FailureKind]int{
	usecase.FailureStorage:       http.StatusInternalServerError,
	usecase.FailureConnection:    http.StatusBadGateway,
	usecase.FailureTimeout:       http.StatusGatewayTimeout,
	usecase.FailureProtocol:      http.StatusBadGateway,
	usecase.FailureEmptyResponse: http.StatusBadGateway,
	usecase.FailureRequest:       http.StatusBadGateway,
	usecase.FailureUnclassified:  http.StatusInternalServerError,
}

// Options tunes what a View exposes.
type Options struct {
	// ShowErrorDetails copies the technical error text into View.Detail.
	ShowErrorDetails bool
}

// View is the user-facing rendering of one Outcome.
type View struct {
	InteractionID string
	Kind          Kind
	Title         string
	Message       string
	Detail        string
	FailureKind   usecase.FailureKind
	Status        int
	ImageURL      template.URL
	ImageCaption  string
}

// FailureMessage returns the fixed message shown for kind.
func FailureMessage(kind usecase.FailureKind) string {
	if msg, ok := failureMessages[kind]; ok {
		return msg
	}
	return failureMessages[usecase.FailureUnclassified]
}

// Present maps an Outcome to a View. Answers are passed through verbatim;
// escaping happens when the View is rendered.
func Present(outcome usecase.Outcome, opts Options) View {
	view := View{InteractionID: outcome.InteractionID}
	if outcome.Image.Format != "" && len(outcome.Image.Data) > 0 {
		view.ImageURL = dataURL(outcome.Image)
		view.ImageCaption = imageCaption
	}

	switch outcome.Status {
	case usecase.OutcomeAnswered:
		view.Kind = KindSuccess
		view.Title = answerTitle
		view.Message = outcome.Answer
		view.Status = http.StatusOK

	case usecase.OutcomeFailed:
		kind := usecase.FailureUnclassified
		if outcome.Failure != nil {
			kind = outcome.Failure.Kind
		}
		view.Kind = KindError
		if kind == usecase.FailureEmptyResponse {
			view.Kind = KindWarning
		}
		view.FailureKind = kind
		view.Message = FailureMessage(kind)
		view.Status = failureStatus[kind]
		if view.Status == 0 {
			view.Status = http.StatusInternalServerError
		}
		if opts.ShowErrorDetails && outcome.Failure != nil && outcome.Failure.Err != nil {
			view.Detail = outcome.Failure.Err.Error()
		}

	default:
		view.Kind = KindInfo
		view.Status = http.StatusBadRequest
		switch outcome.Input {
		case usecase.InputMissingQuestion:
			view.Message = msgMissingQuestion
		case usecase.InputUnsupportedImage:
			view.Kind = KindWarning
			view.Message = msgUnsupportedImage
			view.Status = http.StatusUnsupportedMediaType
		default:
			view.Message = msgMissingImage
		}
	}

	return view
}

// dataURL is only built for sniffed PNG or JPEG content, which makes it safe to
// mark as a trusted template URL.
func dataURL(image usecase.Image) template.URL {
	return template.URL("data:" + image.Format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(image.Data))
}

// PresentUploadRejected renders an upload the server refused to read.
func PresentUploadRejected(status int, maxBytes int64) View {
	view := View{Kind: KindWarning, Status: status}
	switch status {
	case http.StatusRequestEntityTooLarge:
		view.Message = fmt.Sprintf("The image is too large. Please upload an image smaller than %s.", HumanBytes(maxBytes))
	default:
		view.Status = http.StatusBadRequest
		view.Message = "The upload could not be read. Please choose the image again and retry."
	}
	return view
}

// HumanBytes formats n using binary units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
