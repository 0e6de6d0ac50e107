// Package extract reads values out of the visible text of a rendered page.
//
// Pages publish values using a "label:value" convention, for example
// "IP:1.2.3.4". ExtractLabeledValue evaluates the page body's text content
// through a PageHandle and returns the segment after the first colon.
//
// Rules extend that with two more kinds:
//   - text: the whole body text, trimmed
//   - json: a gjson path selected from a body that renders raw JSON
package extract
