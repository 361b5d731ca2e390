// SPDX-License-Identifier: MIT
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/screendiary/screendiary/internal/imaging"
)

// ocrMaxWidth caps the image width handed to tesseract; larger frames are
// downscaled and word boxes rescaled back to original coordinates.
const ocrMaxWidth = 2000

const ocrTimeout = 60 * time.Second

// RecognizedWord is one word box in original image coordinates.
type RecognizedWord struct {
	Text       string
	Left       int
	Top        int
	Width      int
	Height     int
	Confidence float64
}

// Recognition is the full outcome of one OCR pass.
type Recognition struct {
	Text       string
	Confidence float64
	Words      []RecognizedWord
}

// OCREngine extracts text from a frame. Implementations must be safe for
// concurrent use by the pipeline workers.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (*Recognition, error)
}

// Tesseract shells out to the tesseract binary in TSV mode.
type Tesseract struct {
	Bin       string
	Languages string
	PSM       int
}

// NewTesseract builds the engine ("tesseract" when bin is empty).
func NewTesseract(bin, languages string, psm int) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	return &Tesseract{Bin: bin, Languages: languages, PSM: psm}
}

// Recognize grayscales and optionally downscales the frame, runs tesseract
// with TSV output, and returns joined text, mean word confidence and word
// boxes rescaled to the original frame.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	prepared := imaging.Grayscale(img)
	scale := 1.0
	if w := prepared.Bounds().Dx(); w > ocrMaxWidth {
		scale = float64(w) / float64(ocrMaxWidth)
		prepared = imaging.Grayscale(imaging.ScaleToWidth(prepared, ocrMaxWidth))
	}

	tmp, err := os.CreateTemp("", "sd_ocr_*.png")
	if err != nil {
		return nil, fmt.Errorf("ocr temp file: %w", err)
	}
	inputPath := tmp.Name()
	defer func() { _ = os.Remove(inputPath) }()
	if err := png.Encode(tmp, prepared); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("encode ocr input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close ocr input: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()

	args := []string{inputPath, "stdout", "-l", t.Languages, "--psm", strconv.Itoa(t.PSM), "tsv"}
	cmd := exec.CommandContext(cctx, t.Bin, args...) // #nosec G204
	// Keeps tesseract single-threaded so the worker pool controls parallelism.
	cmd.Env = append(os.Environ(), "OMP_THREAD_LIMIT=1")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, firstLine(stderr.String()))
	}

	return parseTSV(out.String(), scale), nil
}

// parseTSV reads tesseract's 12-column TSV. Level 5 rows are words; their
// boxes are multiplied by scale to map back to original coordinates.
func parseTSV(output string, scale float64) *Recognition {
	var (
		rec     Recognition
		parts   []string
		confSum float64
	)
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 { // header
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil || level != 5 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		rec.Words = append(rec.Words, RecognizedWord{
			Text:       text,
			Left:       int(float64(left) * scale),
			Top:        int(float64(top) * scale),
			Width:      int(float64(width) * scale),
			Height:     int(float64(height) * scale),
			Confidence: conf,
		})
		parts = append(parts, text)
		confSum += conf
	}

	rec.Text = strings.Join(parts, " ")
	if len(rec.Words) > 0 {
		rec.Confidence = confSum / float64(len(rec.Words))
	}
	return &rec
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
