package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"time"

	"yardtrack/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var slipCopyTitles = []string{"Weighbridge Copy", "Transporter Copy"}

const slipPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
@page {
	size: A4;
	margin: 20px;
}
body {
	font-family: Arial, Helvetica, sans-serif;
	font-size: 12px;
	margin: 0;
	padding: 0;
}
.slip-copy {
	page-break-inside: avoid;
	margin-bottom: 24px;
}
table.slip {
	width: 100%;
	border-collapse: collapse;
}
table.slip td {
	border: 1px solid #333;
	padding: 4px 6px;
}
td.num {
	text-align: right;
}
td.title {
	text-align: center;
	font-size: 14px;
}
</style>
</head>
<body>`

// SlipRenderer turns weighbridge slip data into HTML and PDF.
type SlipRenderer struct {
	tmpl    *template.Template
	timeout time.Duration
}

func NewSlipRenderer(templatePath string) (*SlipRenderer, error) {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("parse slip template: %w", err)
	}
	return &SlipRenderer{tmpl: tmpl, timeout: 30 * time.Second}, nil
}

// RenderHTML writes one copy per title, each kept whole on a page.
func (s *SlipRenderer) RenderHTML(data models.WeighbridgeSlipData) ([]byte, error) {
	data.AverageWords = WeightToWords(data.Average)

	var full bytes.Buffer
	full.WriteString(slipPage)
	for _, title := range slipCopyTitles {
		data.CopyTitle = title
		full.WriteString("<div class='slip-copy'>")
		if err := s.tmpl.Execute(&full, data); err != nil {
			return nil, err
		}
		full.WriteString("</div>")
	}
	full.WriteString("</body></html>")
	return full.Bytes(), nil
}

// Render prints the slip to an A4 PDF with headless Chrome.
func (s *SlipRenderer) Render(ctx context.Context, data models.WeighbridgeSlipData) ([]byte, error) {
	html, err := s.RenderHTML(data)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "weighbridge_slip_*.html")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, cancelBrowser := chromedp.NewContext(ctx)
	defer cancelBrowser()

	var pdf []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate("file://"+tmp.Name()),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).  // A4 width
				WithPaperHeight(11.7). // A4 height
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print slip: %w", err)
	}
	return pdf, nil
}
