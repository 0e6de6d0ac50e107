//go:generate mockgen -destination=mocks/page_handle_mock.go -package=mocks github.com/abdul-hamid-achik/pagewatch/packages/extract PageHandle

package extract

import (
	"context"
	"strings"
)

// BodyTextFunc is evaluated inside the page to read its visible text.
const BodyTextFunc = `() => document.querySelector('body').textContent`

// Delimiter separates a label from its value in the page text.
const Delimiter = ":"

// PageHandle evaluates a zero-argument function inside a rendered page and
// returns the result as a string. Creating, navigating and closing the page
// belongs to the caller.
type PageHandle interface {
	Evaluate(ctx context.Context, fn string) (string, error)
}

// ExtractLabeledValue returns the text between the first and second delimiter
// of the page body. ok is false when the text holds no delimiter.
//
// Everything after a second delimiter is dropped: "a:b:c" yields "b".
// Existing pages rely on this, so it must not be widened to "rest of line".
//
// Errors from page.Evaluate are returned as they are.
func ExtractLabeledValue(ctx context.Context, page PageHandle) (value string, ok bool, err error) {
	text, err := page.Evaluate(ctx, BodyTextFunc)
	if err != nil {
		return "", false, err
	}
	return LabeledValue(text)
}

// LabeledValue applies the label:value split to already fetched page text.
func LabeledValue(text string) (string, bool, error) {
	parts := strings.Split(text, Delimiter)
	if len(parts) < 2 {
		return "", false, nil
	}
	return parts[1], true, nil
}
