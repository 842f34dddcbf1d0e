// Package tesseract provides the gosseract-backed recognition pass.
package tesseract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/Zuo-Peng/chatcap/internal/ocr"
)

// Recognizer runs one tesseract pass per call with a fresh client.
type Recognizer struct {
	clientFactory func() *gosseract.Client
}

func New() *Recognizer {
	return &Recognizer{clientFactory: gosseract.NewClient}
}

func (r *Recognizer) Name() string { return "tesseract" }

func (r *Recognizer) Recognize(ctx context.Context, in ocr.Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := r.clientFactory()
	defer c.Close()

	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(in.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// PSM returns pass metadata selecting a tesseract page segmentation mode.
func PSM(mode int) map[string]string {
	if mode <= 0 {
		return nil
	}
	return map[string]string{"tessedit_pageseg_mode": strconv.Itoa(mode)}
}

// Version reports the linked tesseract library version.
func Version() string {
	c := gosseract.NewClient()
	defer c.Close()
	return c.Version()
}
