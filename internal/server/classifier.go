package server

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
)

// Input size the lesion model was trained on, 75 wide by 100 tall
const (
	inputWidth  = 75
	inputHeight = 100
)

// Lesion classes in model output order
var classNames = []string{
	"Melanocytic nevi",
	"Melanoma",
	"Benign keratosis-like lesions",
	"Basal cell carcinoma",
	"Actinic keratoses",
	"Vascular lesions",
	"Dermatofibroma",
}

var classDescriptions = map[string]string{
	"Melanocytic nevi":              "Common moles, usually harmless growths on the skin.",
	"Melanoma":                      "A serious form of skin cancer that develops in melanocytes.",
	"Benign keratosis-like lesions": "Non-cancerous skin growths that appear as waxy brown, black or tan growths.",
	"Basal cell carcinoma":          "The most common type of skin cancer, usually developing on sun-exposed areas.",
	"Actinic keratoses":             "Rough, scaly patches on the skin caused by years of sun exposure.",
	"Vascular lesions":              "Abnormalities of blood vessels visible on the skin surface.",
	"Dermatofibroma":                "Common benign skin growths that often appear as small, firm bumps on the skin.",
}

const noDescription = "No description available."

// Prediction is what /analyze returns
type Prediction struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Description    string  `json:"description"`
}

// Classifier turns an image into a prediction
type Classifier interface {
	Classify(img image.Image) (Prediction, error)
}

// describe returns the fixed description for a class
func describe(class string) string {
	if d, ok := classDescriptions[class]; ok {
		return d
	}
	return noDescription
}

// decodeImage reads any format imaging understands and applies EXIF orientation
func decodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	return img, nil
}

// ColorClassifier is a deterministic stand-in for the real model. It
// preprocesses like the model (resize to 75 wide by 100 tall, scale to [0,1]) and scores
// each class from simple colour statistics. It is for local testing only and
// carries no diagnostic meaning.
type ColorClassifier struct{}

// class weights over [mean R, mean G, mean B, darkness, contrast, redness, bias]
var colorWeights = [][]float64{
	{0.8, 0.6, 0.5, -0.4, -0.6, 0.0, 0.6},
	{-0.6, -0.5, -0.3, 1.6, 1.2, 0.1, -0.4},
	{0.3, 0.2, 0.0, 0.4, 0.3, -0.2, 0.0},
	{0.6, 0.3, 0.4, -0.2, 0.6, 0.2, -0.3},
	{0.7, 0.1, 0.0, 0.0, 0.4, 0.6, -0.5},
	{0.5, -0.8, -0.2, 0.1, 0.2, 1.8, -0.6},
	{0.2, 0.1, 0.1, 0.5, -0.2, 0.1, -0.2},
}

// Classify implements Classifier
func (ColorClassifier) Classify(img image.Image) (Prediction, error) {
	if img == nil || img.Bounds().Empty() {
		return Prediction{}, fmt.Errorf("empty image")
	}

	resized := imaging.Resize(img, inputWidth, inputHeight, imaging.Lanczos)
	features := colorFeatures(resized)

	scores := make([]float64, len(classNames))
	for i, w := range colorWeights {
		s := w[len(w)-1]
		for j, f := range features {
			s += w[j] * f
		}
		scores[i] = s
	}
	probs := softmax(scores)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	class := classNames[best]
	return Prediction{
		Classification: class,
		Confidence:     probs[best],
		Description:    describe(class),
	}, nil
}

func colorFeatures(img *image.NRGBA) []float64 {
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())

	var sumR, sumG, sumB, sumL, sumL2, sumRed float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i]) / 255
			g := float64(img.Pix[i+1]) / 255
			bl := float64(img.Pix[i+2]) / 255
			l := 0.299*r + 0.587*g + 0.114*bl

			sumR += r
			sumG += g
			sumB += bl
			sumL += l
			sumL2 += l * l
			sumRed += math.Max(0, r-(g+bl)/2)
		}
	}

	meanL := sumL / n
	variance := math.Max(0, sumL2/n-meanL*meanL)
	return []float64{
		sumR / n,
		sumG / n,
		sumB / n,
		1 - meanL,
		math.Sqrt(variance) * 4,
		sumRed / n * 2,
	}
}

func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
